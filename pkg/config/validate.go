package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}

	if c.BaseDir == "" {
		errs = append(errs, fmt.Errorf("base_dir is required"))
	} else if strings.Contains(c.BaseDir, "${") {
		errs = append(errs, fmt.Errorf("base_dir has an unresolved variable: %q", c.BaseDir))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}

	if c.Socket == "" {
		errs = append(errs, fmt.Errorf("socket is required"))
	}

	if c.Admin.Listen != "" && !strings.HasPrefix(c.Admin.Path, "/") {
		errs = append(errs, fmt.Errorf("admin.path must start with /, got %q", c.Admin.Path))
	}

	return errs
}
