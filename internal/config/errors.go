package config

import "errors"

var (
	// ErrNoDatabase is returned when no database engine was configured.
	ErrNoDatabase = errors.New("config DB.GormEngine can not be empty")

	// ErrNoPlugins is returned when the engine has no plugins configured.
	ErrNoPlugins = errors.New("config Engine.Plugins can not be empty")

	// ErrUnknownPlugin is returned when an unknown plugin name is configured.
	ErrUnknownPlugin = errors.New("unknown plugin name in Engine.Plugins")
)
