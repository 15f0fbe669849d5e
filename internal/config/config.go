// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/BurntSushi/toml"
)

// KnownPlugins lists every plugin name that may appear in Engine.Plugins.
var KnownPlugins = []string{
	"lognotice",
	"timeline",
	"directory",
	"idp",
	"groupware",
	"sourcehost",
	"vault",
	"chat",
	"pos",
}

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	if _, err = toml.DecodeFile(path+"main.toml", &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv("CLAUDIA_CONFIG_JSON")

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	return validate(c)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config override from env")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate minimal config settings for the engine and fill in defaults.
func validate(c Config) (Config, error) {
	invalidErrMessage := "invalid config"

	if c.DB.GormEngine == "" {
		return c, errors.Wrap(ErrNoDatabase, invalidErrMessage)
	}

	if len(c.Engine.Plugins) == 0 {
		return c, errors.Wrap(ErrNoPlugins, invalidErrMessage)
	}

	for _, name := range c.Engine.Plugins {
		if !slices.Contains(KnownPlugins, name) {
			return c, errors.Wrap(ErrUnknownPlugin, name)
		}
	}

	if c.Engine.GracePeriod == 0 {
		c.Engine.GracePeriod = 30 * 24 * time.Hour
	}

	if c.Engine.RetryCeiling == 0 {
		c.Engine.RetryCeiling = 10
	}

	if c.Engine.CycleTTL == 0 {
		c.Engine.CycleTTL = 2 * time.Hour
	}

	if c.Engine.Workers == 0 {
		c.Engine.Workers = 4
	}

	if c.Engine.IntegrityInterval == 0 {
		c.Engine.IntegrityInterval = 24 * time.Hour
	}

	if c.Engine.DefaultShell == "" {
		c.Engine.DefaultShell = "bash"
	}

	if len(c.Engine.Shells) == 0 {
		c.Engine.Shells = map[string]string{"bash": "/bin/bash"}
	}

	// struct tag validation for backend endpoints
	if err := validator.New().Struct(c); err != nil {
		return c, errors.Wrap(err, invalidErrMessage)
	}

	return c, nil
}
