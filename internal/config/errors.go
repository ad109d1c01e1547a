package config

import "errors"

var (
	// ErrMissingSetting lists required settings that were not provided.
	ErrMissingSetting = errors.New("missing required configuration")
	// ErrInvalidSetting indicates a setting that is present but unusable.
	ErrInvalidSetting = errors.New("invalid configuration")
)
