package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds client session configuration values.
type Config struct {
	ServerURL   string        `mapstructure:"server_url" yaml:"server_url" validate:"required,url"`
	Room        string        `mapstructure:"room" yaml:"room" validate:"required"`
	LogLevel    string        `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error off disabled"`
	ProfilePath string        `mapstructure:"profile_path" yaml:"profile_path" validate:"required"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout" validate:"gt=0"`

	PlaneWidth  float64 `mapstructure:"plane_width" yaml:"plane_width" validate:"gt=0"`
	PlaneHeight float64 `mapstructure:"plane_height" yaml:"plane_height" validate:"gt=0"`
	ViewWidth   float64 `mapstructure:"view_width" yaml:"view_width" validate:"gt=0"`
	ViewHeight  float64 `mapstructure:"view_height" yaml:"view_height" validate:"gt=0"`

	MessageTTL time.Duration `mapstructure:"message_ttl" yaml:"message_ttl" validate:"gt=0"`
	FadeGrace  time.Duration `mapstructure:"fade_grace" yaml:"fade_grace" validate:"gt=0"`

	// JWT settings are optional; without a secret the session stays anonymous.
	JWTSecret string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTTTL    time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl" validate:"gte=0"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:   "ws://localhost:3001/api/chat",
		Room:        "default",
		LogLevel:    "info",
		ProfilePath: "canvas-profile.db",
		DialTimeout: 10 * time.Second,
		PlaneWidth:  5000,
		PlaneHeight: 5000,
		ViewWidth:   1280,
		ViewHeight:  800,
		MessageTTL:  5 * time.Second,
		FadeGrace:   500 * time.Millisecond,
		JWTIssuer:   "canvaschat",
		JWTTTL:      24 * time.Hour,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.Room != "" {
		c.Room = other.Room
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ProfilePath != "" {
		c.ProfilePath = other.ProfilePath
	}
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}
	if other.PlaneWidth != 0 {
		c.PlaneWidth = other.PlaneWidth
	}
	if other.PlaneHeight != 0 {
		c.PlaneHeight = other.PlaneHeight
	}
	if other.ViewWidth != 0 {
		c.ViewWidth = other.ViewWidth
	}
	if other.ViewHeight != 0 {
		c.ViewHeight = other.ViewHeight
	}
	if other.MessageTTL != 0 {
		c.MessageTTL = other.MessageTTL
	}
	if other.FadeGrace != 0 {
		c.FadeGrace = other.FadeGrace
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTTTL != 0 {
		c.JWTTTL = other.JWTTTL
	}
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
