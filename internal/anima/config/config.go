package config

import (
	"github.com/kiosk404/anima/internal/anima/options"
)

// Config is the running configuration of the anima service.
type Config struct {
	*options.Options
}

// CreateConfigFromOptions builds the running configuration from completed
// options.
func CreateConfigFromOptions(opts *options.Options) (*Config, error) {
	return &Config{opts}, nil
}
