// Package browser provides the browser capability behind webpilot tasks:
// the action model the vision model drives, a Playwright-backed driver,
// the action executor and the screenshot store.
package browser

import (
	"fmt"
	"math"
	"time"

	"github.com/webpilot-ai/webpilot/types"
)

// ActionKind names a browser action the vision model may request.
type ActionKind string

const (
	ActionOpenBrowser    ActionKind = "open_web_browser"
	ActionWaitSeconds    ActionKind = "wait_5_seconds"
	ActionGoBack         ActionKind = "go_back"
	ActionGoForward      ActionKind = "go_forward"
	ActionSearch         ActionKind = "search"
	ActionNavigate       ActionKind = "navigate"
	ActionClickAt        ActionKind = "click_at"
	ActionHoverAt        ActionKind = "hover_at"
	ActionTypeTextAt     ActionKind = "type_text_at"
	ActionKeyCombination ActionKind = "key_combination"
	ActionScrollDocument ActionKind = "scroll_document"
	ActionScrollAt       ActionKind = "scroll_at"
	ActionDragAndDrop    ActionKind = "drag_and_drop"
)

// IsNavigation reports whether the action loads a document and should be
// settled by waiting for content-loaded rather than a fixed pause.
func (k ActionKind) IsNavigation() bool {
	switch k {
	case ActionNavigate, ActionGoBack, ActionGoForward, ActionSearch:
		return true
	}
	return false
}

// GridMax is the upper bound of the normalized coordinate grid the model
// emits. Coordinates are denormalized against the viewport before use.
const GridMax = 999

// DefaultScrollMagnitude is the normalized scroll distance used when the
// model omits one.
const DefaultScrollMagnitude = 800

// Action is a parsed, validated browser action.
type Action struct {
	Kind ActionKind `json:"kind"`

	URL          string `json:"url,omitempty"`
	X            int    `json:"x,omitempty"`
	Y            int    `json:"y,omitempty"`
	DestinationX int    `json:"destination_x,omitempty"`
	DestinationY int    `json:"destination_y,omitempty"`
	Text         string `json:"text,omitempty"`
	Keys         string `json:"keys,omitempty"`
	Direction    string `json:"direction,omitempty"`
	Magnitude    int    `json:"magnitude,omitempty"`

	PressEnter        bool `json:"press_enter,omitempty"`
	ClearBeforeTyping bool `json:"clear_before_typing,omitempty"`
}

// ParseAction validates a model function call against the closed action set.
// Unknown names yield an unsupported-action error; missing, ill-typed or
// out-of-range parameters yield an invalid-action error.
func ParseAction(name string, args map[string]any) (*Action, error) {
	a := &Action{
		Kind:              ActionKind(name),
		Magnitude:         DefaultScrollMagnitude,
		PressEnter:        true,
		ClearBeforeTyping: true,
	}

	switch a.Kind {
	case ActionOpenBrowser, ActionWaitSeconds, ActionGoBack, ActionGoForward, ActionSearch:
		// No parameters.

	case ActionNavigate:
		url, ok := stringArg(args, "url")
		if !ok || url == "" {
			return nil, types.NewInvalidActionError("navigate requires a url")
		}
		a.URL = url

	case ActionClickAt, ActionHoverAt:
		if err := parseCoordinates(args, &a.X, &a.Y); err != nil {
			return nil, err
		}

	case ActionTypeTextAt:
		if err := parseCoordinates(args, &a.X, &a.Y); err != nil {
			return nil, err
		}
		text, ok := stringArg(args, "text")
		if !ok {
			return nil, types.NewInvalidActionError("type_text_at requires text")
		}
		a.Text = text
		if v, ok := boolArg(args, "press_enter"); ok {
			a.PressEnter = v
		}
		if v, ok := boolArg(args, "clear_before_typing"); ok {
			a.ClearBeforeTyping = v
		}

	case ActionKeyCombination:
		keys, ok := stringArg(args, "keys")
		if !ok || keys == "" {
			return nil, types.NewInvalidActionError("key_combination requires keys")
		}
		a.Keys = keys

	case ActionScrollDocument:
		dir, err := parseDirection(args)
		if err != nil {
			return nil, err
		}
		a.Direction = dir

	case ActionScrollAt:
		if err := parseCoordinates(args, &a.X, &a.Y); err != nil {
			return nil, err
		}
		dir, err := parseDirection(args)
		if err != nil {
			return nil, err
		}
		a.Direction = dir
		if v, ok := intArg(args, "magnitude"); ok {
			if v < 0 {
				return nil, types.NewInvalidActionError("magnitude must not be negative")
			}
			a.Magnitude = v
		}

	case ActionDragAndDrop:
		if err := parseCoordinates(args, &a.X, &a.Y); err != nil {
			return nil, err
		}
		dx, ok := intArg(args, "destination_x")
		if !ok {
			return nil, types.NewInvalidActionError("drag_and_drop requires destination_x")
		}
		dy, ok := intArg(args, "destination_y")
		if !ok {
			return nil, types.NewInvalidActionError("drag_and_drop requires destination_y")
		}
		if !inGrid(dx) || !inGrid(dy) {
			return nil, types.NewInvalidActionError("destination coordinates must be within [0,%d]", GridMax)
		}
		a.DestinationX, a.DestinationY = dx, dy

	default:
		return nil, types.NewUnsupportedActionError(name)
	}

	return a, nil
}

func parseCoordinates(args map[string]any, x, y *int) error {
	vx, ok := intArg(args, "x")
	if !ok {
		return types.NewInvalidActionError("missing integer coordinate x")
	}
	vy, ok := intArg(args, "y")
	if !ok {
		return types.NewInvalidActionError("missing integer coordinate y")
	}
	if !inGrid(vx) || !inGrid(vy) {
		return types.NewInvalidActionError("coordinates must be within [0,%d]", GridMax)
	}
	*x, *y = vx, vy
	return nil
}

func parseDirection(args map[string]any) (string, error) {
	dir, ok := stringArg(args, "direction")
	if !ok {
		return "", types.NewInvalidActionError("missing scroll direction")
	}
	switch dir {
	case "up", "down", "left", "right":
		return dir, nil
	}
	return "", types.NewInvalidActionError("unknown scroll direction %q", dir)
}

func inGrid(v int) bool {
	return v >= 0 && v <= GridMax
}

// intArg reads an integral argument. JSON decoding hands numbers over as
// float64, so integral floats are accepted.
func intArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func boolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Screen is the fixed browser viewport the normalized grid maps onto.
type Screen struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DenormX converts a normalized x coordinate (0-999) to a pixel coordinate.
func (s Screen) DenormX(x int) int {
	return int(float64(x) / 1000 * float64(s.Width))
}

// DenormY converts a normalized y coordinate (0-999) to a pixel coordinate.
func (s Screen) DenormY(y int) int {
	return int(float64(y) / 1000 * float64(s.Height))
}

// Denormalize converts a normalized point to viewport pixels.
func (s Screen) Denormalize(x, y int) (int, int) {
	return s.DenormX(x), s.DenormY(y)
}

// Config configures the browser capability.
type Config struct {
	Headless        bool          `json:"headless"`
	Screen          Screen        `json:"screen"`
	SearchURL       string        `json:"search_url"`
	NavigateTimeout time.Duration `json:"navigate_timeout"`
	SettleTimeout   time.Duration `json:"settle_timeout"`
	SettleDelay     time.Duration `json:"settle_delay"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:        false,
		Screen:          Screen{Width: 1440, Height: 900},
		SearchURL:       "https://www.google.com",
		NavigateTimeout: 10 * time.Second,
		SettleTimeout:   3 * time.Second,
		SettleDelay:     300 * time.Millisecond,
	}
}

func (c Config) String() string {
	return fmt.Sprintf("browser{headless=%t screen=%dx%d}", c.Headless, c.Screen.Width, c.Screen.Height)
}
