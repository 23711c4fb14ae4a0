package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/types"
)

// PlaywrightDriver drives a single Chromium page through playwright-go.
type PlaywrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page

	navigateTimeout time.Duration
	logger          *zap.Logger
}

var _ Driver = (*PlaywrightDriver)(nil)

// Install downloads the Playwright driver and browser binaries. Meant for
// the install command; regular startup assumes they are present.
func Install() error {
	return playwright.Install()
}

// NewPlaywrightDriver starts Playwright and opens a Chromium page with the
// configured viewport. Construction failures are capability errors.
func NewPlaywrightDriver(cfg Config, logger *zap.Logger) (*PlaywrightDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Keep driver output off the std streams; stdout carries protocol
	// frames under the stdio transport.
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, types.NewCapabilityError("playwright", "failed to start playwright").WithCause(err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &cfg.Headless,
	})
	if err != nil {
		_ = pw.Stop()
		return nil, types.NewCapabilityError("playwright", "failed to launch browser").WithCause(err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  cfg.Screen.Width,
			Height: cfg.Screen.Height,
		},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, types.NewCapabilityError("playwright", "failed to create browser context").WithCause(err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, types.NewCapabilityError("playwright", "failed to create page").WithCause(err)
	}

	page.SetDefaultTimeout(float64(cfg.NavigateTimeout.Milliseconds()))

	logger.Info("browser ready",
		zap.Bool("headless", cfg.Headless),
		zap.Int("width", cfg.Screen.Width),
		zap.Int("height", cfg.Screen.Height),
	)

	return &PlaywrightDriver{
		pw:              pw,
		browser:         browser,
		bctx:            bctx,
		page:            page,
		navigateTimeout: cfg.NavigateTimeout,
		logger:          logger.With(zap.String("component", "playwright_driver")),
	}, nil
}

// Navigate loads url, waiting for content-loaded within the navigate timeout.
func (d *PlaywrightDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	waitUntil := playwright.WaitUntilState("domcontentloaded")
	timeout := float64(d.navigateTimeout.Milliseconds())
	if _, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: &waitUntil,
		Timeout:   &timeout,
	}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.page.GoBack(); err != nil {
		return fmt.Errorf("go back failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) GoForward(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.page.GoForward(); err != nil {
		return fmt.Errorf("go forward failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) Click(ctx context.Context, x, y int) error {
	if err := d.page.Mouse().Click(float64(x), float64(y)); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) MoveMouse(ctx context.Context, x, y int) error {
	if err := d.page.Mouse().Move(float64(x), float64(y)); err != nil {
		return fmt.Errorf("mouse move failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) MouseDown(ctx context.Context) error {
	if err := d.page.Mouse().Down(); err != nil {
		return fmt.Errorf("mouse down failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) MouseUp(ctx context.Context) error {
	if err := d.page.Mouse().Up(); err != nil {
		return fmt.Errorf("mouse up failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) TypeText(ctx context.Context, text string) error {
	if err := d.page.Keyboard().Type(text); err != nil {
		return fmt.Errorf("type failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) PressKey(ctx context.Context, keys string) error {
	if err := d.page.Keyboard().Press(keys); err != nil {
		return fmt.Errorf("key press failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) Wheel(ctx context.Context, deltaX, deltaY int) error {
	if err := d.page.Mouse().Wheel(float64(deltaX), float64(deltaY)); err != nil {
		return fmt.Errorf("wheel failed: %w", err)
	}
	return nil
}

// Screenshot captures the viewport as PNG bytes.
func (d *PlaywrightDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	png, err := d.page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return png, nil
}

func (d *PlaywrightDriver) CurrentURL(ctx context.Context) (string, error) {
	return d.page.URL(), nil
}

func (d *PlaywrightDriver) WaitForLoad(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state := playwright.LoadState("domcontentloaded")
	t := float64(timeout.Milliseconds())
	return d.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   &state,
		Timeout: &t,
	})
}

// Close tears down the page, context, browser and the playwright process.
func (d *PlaywrightDriver) Close(ctx context.Context) error {
	var errs []error
	if err := d.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close page: %w", err))
	}
	if err := d.bctx.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close context: %w", err))
	}
	if err := d.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := d.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	if len(errs) > 0 {
		d.logger.Warn("browser teardown finished with errors", zap.Int("errors", len(errs)))
	}
	return errors.Join(errs...)
}
