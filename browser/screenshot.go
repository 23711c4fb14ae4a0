package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/types"
)

// NewSessionID builds a screenshot session identifier from the start time
// and a short random suffix, e.g. "20250114_193042_a1b2c3d4".
func NewSessionID(now time.Time) string {
	return now.Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

// ScreenshotStore writes per-session screenshots under a root directory
// and lists them back for retrieval.
type ScreenshotStore struct {
	root   string
	now    func() time.Time
	logger *zap.Logger
}

// NewScreenshotStore creates a store rooted at dir. The directory is
// created lazily on first save.
func NewScreenshotStore(dir string, logger *zap.Logger) *ScreenshotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScreenshotStore{
		root:   dir,
		now:    time.Now,
		logger: logger.With(zap.String("component", "screenshots")),
	}
}

// Root returns the store's root directory.
func (s *ScreenshotStore) Root() string {
	return s.root
}

// SessionDir returns the directory holding a session's screenshots.
func (s *ScreenshotStore) SessionDir(sessionID string) string {
	return filepath.Join(s.root, sessionID)
}

// Save writes one PNG under the session directory. Files are named
// step_NN_HHMMSS.png, with an optional label ("initial", "final") between
// the step number and the timestamp. The written path is returned.
func (s *ScreenshotStore) Save(sessionID string, step int, label string, png []byte) (string, error) {
	dir := s.SessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}

	ts := s.now().Format("150405")
	var name string
	if label == "" {
		name = fmt.Sprintf("step_%02d_%s.png", step, ts)
	} else {
		name = fmt.Sprintf("step_%02d_%s_%s.png", step, label, ts)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}

	s.logger.Debug("saved screenshot",
		zap.String("session_id", sessionID),
		zap.String("file", name),
		zap.Int("bytes", len(png)),
	)
	return path, nil
}

// List returns the session's screenshots as sorted paths relative to the
// store root. A session with no screenshots is a not-found error.
func (s *ScreenshotStore) List(sessionID string) ([]string, error) {
	entries, err := os.ReadDir(s.SessionDir(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewNotFoundError("no screenshots for session %s", sessionID)
		}
		return nil, fmt.Errorf("read screenshot dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		paths = append(paths, filepath.Join(sessionID, entry.Name()))
	}
	if len(paths) == 0 {
		return nil, types.NewNotFoundError("no screenshots for session %s", sessionID)
	}
	return paths, nil
}
