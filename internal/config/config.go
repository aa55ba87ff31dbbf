// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

// Package config loads Crowdwatch configuration from built-in defaults, an
// optional YAML file and environment variables (highest priority), using
// Koanf v2.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Results  ResultsConfig  `koanf:"results"`
	Store    StoreConfig    `koanf:"store"`
	Alerting AlertingConfig `koanf:"alerting"`
	NATS     NATSConfig     `koanf:"nats"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Environment is reported by /health (development, production, test).
	Environment string `koanf:"environment"`
}

// SecurityConfig holds authentication and request-limiting settings.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// AdminUsername and AdminPassword seed the first admin account when no
	// user with that name exists yet. Leave empty to skip seeding.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// PolicyPath points at a Casbin policy CSV that replaces the built-in
	// role policy. It is reloaded every PolicyReload when set.
	PolicyPath   string        `koanf:"policy_path"`
	PolicyReload time.Duration `koanf:"policy_reload"`
}

// Retention policies accepted by ResultsConfig.RetentionPolicy.
const (
	RetentionPerType  = "per_type"
	RetentionCombined = "combined"
)

// ResultsConfig controls the result directory watcher and query layer.
type ResultsConfig struct {
	Dir string `koanf:"dir"`

	// ScanInterval bounds the delay between a file change on disk and the
	// fileUpdate notification.
	ScanInterval time.Duration `koanf:"scan_interval"`

	CleanupDefaultMax int    `koanf:"cleanup_default_max"`
	RetentionPolicy   string `koanf:"retention_policy"`

	// BulkFallbackMaxFiles caps how many detection files the bulk
	// detections endpoint reads from disk when the store is empty.
	BulkFallbackMaxFiles int `koanf:"bulk_fallback_max_files"`

	// SourceTimeout is applied to each backing source during a merge.
	SourceTimeout time.Duration `koanf:"source_timeout"`

	MirrorOnStart bool `koanf:"mirror_on_start"`
}

// StoreConfig configures the BadgerDB persisted store.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// GCInterval is how often value log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// AlertingConfig holds threshold alerting settings.
type AlertingConfig struct {
	// CameraActivityThreshold is how recently a camera must have reported
	// to be listed as active.
	CameraActivityThreshold time.Duration `koanf:"camera_activity_threshold"`

	// DefaultCrowdThreshold applies to samples from unregistered cameras.
	DefaultCrowdThreshold int `koanf:"default_crowd_threshold"`
}

// NATSConfig configures the optional NATS event bridge (build tag nats).
type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration using the layered Koanf loader.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
