package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.State.Driver != StateDriverJSON {
		t.Errorf("driver = %q", cfg.State.Driver)
	}
}

func TestStateConfig(t *testing.T) {
	cfg := StateConfig{Path: "state.json"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty driver should default to json: %v", err)
	}
	if cfg.Driver != StateDriverJSON {
		t.Errorf("driver = %q", cfg.Driver)
	}
	if err := (&StateConfig{Driver: "redis", Path: "x"}).Validate(); err == nil {
		t.Error("unknown driver should fail")
	}
	if err := (&StateConfig{Driver: StateDriverSQLite}).Validate(); err == nil {
		t.Error("missing path should fail")
	}
}

func TestVaultConfig_Extensions(t *testing.T) {
	if err := (&VaultConfig{Path: "v", Extensions: []string{".md", ".txt"}}).Validate(); err != nil {
		t.Errorf("valid extensions rejected: %v", err)
	}
	if err := (&VaultConfig{Path: "v", Extensions: []string{"md"}}).Validate(); err == nil {
		t.Error("extension without dot should fail")
	}
}

func TestTaggingConfig(t *testing.T) {
	if err := (&TaggingConfig{Concurrency: -1}).Validate(); err == nil {
		t.Error("negative concurrency should fail")
	}
	for _, tag := range []string{"c#", "machine learning", ""} {
		if err := (&TaggingConfig{DefaultTags: []string{"go", tag}}).Validate(); err == nil {
			t.Errorf("default tag %q should fail", tag)
		}
	}

	cfg := TaggingConfig{Model: "  llama3.2 ", DefaultTags: []string{"go"}, AutoAddTags: true}
	st := cfg.DefaultState()
	if st.Model() != "llama3.2" || !st.AutoAddTags || st.DefaultTags[0] != "go" || st.TaggedFiles == nil {
		t.Errorf("state = %+v", st)
	}
	if (&TaggingConfig{}).DefaultState().SelectedModel != nil {
		t.Error("blank model must stay unselected")
	}
}
