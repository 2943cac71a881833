package config

import (
	"fmt"
	"time"
)

// AppRenewDuration parses AppRenewInterval. Zero means "use the default".
func (c *Config) AppRenewDuration() (time.Duration, error) {
	if c.AppRenewInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.AppRenewInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid app_renew_interval %q: %w", c.AppRenewInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("app_renew_interval must be positive, got %s", d)
	}
	return d, nil
}
