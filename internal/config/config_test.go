package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testConfigPath(t *testing.T) string {
	t.Helper()

	projectRoot, err := filepath.Abs("../../")
	if err != nil {
		t.Fatalf("failed to get project root: %v", err)
	}

	return filepath.Join(projectRoot, "etc") + string(filepath.Separator)
}

func TestReadConfig(t *testing.T) {
	cfg, err := ReadConfig(testConfigPath(t))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.DB.GormEngine == "" {
		t.Error("DB.GormEngine should not be empty")
	}

	if cfg.DB.Host == "" {
		t.Error("DB.Host should not be empty")
	}

	if len(cfg.Engine.Plugins) == 0 {
		t.Error("Engine.Plugins should not be empty")
	}

	if cfg.Engine.GracePeriod != 720*time.Hour {
		t.Errorf("Engine.GracePeriod = %v, want %v", cfg.Engine.GracePeriod, 720*time.Hour)
	}

	if cfg.Engine.CycleTTL != 2*time.Hour {
		t.Errorf("Engine.CycleTTL = %v, want %v", cfg.Engine.CycleTTL, 2*time.Hour)
	}
}

func TestConfigValidation(t *testing.T) {
	valid := Config{
		DB:     DB{GormEngine: "sqlite"},
		Engine: Engine{Plugins: []string{"lognotice", "directory"}},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "missing database engine",
			mutate:  func(c *Config) { c.DB.GormEngine = "" },
			wantErr: true,
		},
		{
			name:    "no plugins",
			mutate:  func(c *Config) { c.Engine.Plugins = nil },
			wantErr: true,
		},
		{
			name:    "unknown plugin",
			mutate:  func(c *Config) { c.Engine.Plugins = []string{"telegraph"} },
			wantErr: true,
		},
		{
			name:    "bad backend url",
			mutate:  func(c *Config) { c.Groupware.BaseURL = "not a url" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			_, err := validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidationDefaults(t *testing.T) {
	cfg, err := validate(Config{
		DB:     DB{GormEngine: "sqlite"},
		Engine: Engine{Plugins: []string{"lognotice"}},
	})
	if err != nil {
		t.Fatalf("validate() error = %v", err)
	}

	if cfg.Engine.GracePeriod != 30*24*time.Hour {
		t.Errorf("GracePeriod default = %v, want 30 days", cfg.Engine.GracePeriod)
	}

	if cfg.Engine.RetryCeiling != 10 {
		t.Errorf("RetryCeiling default = %v, want 10", cfg.Engine.RetryCeiling)
	}

	if cfg.Engine.CycleTTL != 2*time.Hour {
		t.Errorf("CycleTTL default = %v, want 2h", cfg.Engine.CycleTTL)
	}

	if cfg.Engine.Workers == 0 {
		t.Error("Workers default should not be 0")
	}
}

func TestReadConfigWithJSONOverride(t *testing.T) {
	jsonOverride := `{"DevMode":true,"DB":{"Port":5432}}`
	t.Setenv("CLAUDIA_CONFIG_JSON", jsonOverride)

	cfg, err := ReadConfig(testConfigPath(t))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if !cfg.DevMode {
		t.Error("DevMode = false, want true from override")
	}

	if cfg.DB.Port != 5432 {
		t.Errorf("DB.Port = %v, want %v", cfg.DB.Port, 5432)
	}
}

func TestDumpConfig(t *testing.T) {
	cfg := Config{
		DevMode: true,
		DB:      DB{GormEngine: "sqlite", Host: "localhost"},
	}

	tomlStr, err := DumpConfig(cfg)
	if err != nil {
		t.Fatalf("DumpConfig() error = %v", err)
	}

	if !strings.Contains(tomlStr, "localhost") {
		t.Error("DumpConfig() output should contain DB host")
	}
}

func TestDumpConfigJSON(t *testing.T) {
	cfg := Config{
		DB: DB{GormEngine: "sqlite", Host: "localhost"},
	}

	jsonStr, err := DumpConfigJSON(cfg)
	if err != nil {
		t.Fatalf("DumpConfigJSON() error = %v", err)
	}

	if !strings.Contains(jsonStr, "localhost") {
		t.Error("DumpConfigJSON() output should contain DB host")
	}
}
