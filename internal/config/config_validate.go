// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package config

import (
	"fmt"
	"strings"
	"time"
)

// maxScanInterval is the upper bound on change-notification latency.
const maxScanInterval = 5 * time.Second

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateResults(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("SERVER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	if c.Security.AdminUsername != "" && len(c.Security.AdminPassword) < 6 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 6 characters when ADMIN_USERNAME is set")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

func (c *Config) validateResults() error {
	r := c.Results
	if strings.TrimSpace(r.Dir) == "" {
		return fmt.Errorf("RESULTS_DIR is required")
	}
	if r.ScanInterval <= 0 || r.ScanInterval > maxScanInterval {
		return fmt.Errorf("RESULTS_SCAN_INTERVAL must be in (0, %s], got %s", maxScanInterval, r.ScanInterval)
	}
	if r.CleanupDefaultMax < 1 {
		return fmt.Errorf("RESULTS_CLEANUP_MAX must be at least 1")
	}
	if r.RetentionPolicy != RetentionPerType && r.RetentionPolicy != RetentionCombined {
		return fmt.Errorf("RESULTS_RETENTION must be %q or %q, got %q", RetentionPerType, RetentionCombined, r.RetentionPolicy)
	}
	if r.BulkFallbackMaxFiles < 1 {
		return fmt.Errorf("RESULTS_BULK_MAX_FILES must be at least 1")
	}
	if r.SourceTimeout <= 0 {
		return fmt.Errorf("RESULTS_SOURCE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("STORE_PATH is required unless STORE_IN_MEMORY=true")
	}
	if c.Store.GCInterval <= 0 {
		return fmt.Errorf("STORE_GC_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not recognized", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
