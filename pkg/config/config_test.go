package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type testConfig struct {
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
	invalid bool
}

func (c *testConfig) Validate() error {
	if c.Name == "" || c.invalid {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("AUTOTAG_TEST_NAME", "from-env")
	path := writeFile(t, "name: ${AUTOTAG_TEST_NAME}\ntimeout: 90s\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "from-env" || cfg.Timeout != 90*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeFile(t, "timeout: 1s\n")
	var cfg testConfig
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoadOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg := testConfig{Name: "default"}
	if err := LoadOptional(missing, &cfg); err != nil {
		t.Fatalf("missing file with valid defaults: %v", err)
	}
	if cfg.Name != "default" {
		t.Errorf("defaults changed: %+v", cfg)
	}

	bad := testConfig{Name: "x", invalid: true}
	if err := LoadOptional(missing, &bad); err == nil {
		t.Error("defaults must still be validated")
	}

	path := writeFile(t, "name: file\n")
	if err := LoadOptional(path, &cfg); err != nil || cfg.Name != "file" {
		t.Errorf("existing file: cfg=%+v err=%v", cfg, err)
	}
}
