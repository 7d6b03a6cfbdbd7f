package presets

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/modoterra/rawlog/pkg/config"
)

// GenerateWordPress creates a config that logs into the uploads directory of
// the WordPress install at root.
func GenerateWordPress(root string) (*config.Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	// Verify it's a WordPress install
	content := filepath.Join(absRoot, "wp-content")
	if fi, err := os.Stat(content); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%s does not appear to be a WordPress install (no wp-content directory)", absRoot)
	}

	c := config.Default()
	c.BaseDir = filepath.Join(content, "uploads", "moc-logs")
	c.Socket = filepath.Join(os.TempDir(), "rawlogd-"+filepath.Base(absRoot)+".sock")
	c.Admin = config.Admin{Listen: "127.0.0.1:8790", Path: "/rawlog"}
	return c, nil
}

// GenerateDefault creates a config with every field at its default, with
// variables expanded for the current user.
func GenerateDefault() (*config.Config, error) {
	c := config.Default()
	config.ApplyEnv(c, func(string) (string, bool) { return "", false })
	if err := firstError(config.Validate(c)); err != nil {
		return nil, err
	}
	return c, nil
}

func firstError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}
