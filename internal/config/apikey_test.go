package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveAuthTokenPrefersExplicit(t *testing.T) {
	t.Setenv("UPLOADCORE_AUTH_TOKEN", "from-env")
	if got := ResolveAuthToken("from-flag"); got != "from-flag" {
		t.Errorf("got %q, want from-flag", got)
	}
}

func TestResolveAuthTokenFallsBackToEnv(t *testing.T) {
	t.Setenv("UPLOADCORE_AUTH_TOKEN", "from-env")
	if got := ResolveAuthToken(""); got != "from-env" {
		t.Errorf("got %q, want from-env", got)
	}
}

func TestResolveAuthTokenReadsTokenFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("UPLOADCORE_AUTH_TOKEN", "")

	tokenPath, err := DefaultTokenPath()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(tokenPath), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tokenPath, []byte("from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if got := ResolveAuthToken(""); got != "from-file" {
		t.Errorf("got %q, want from-file", got)
	}
}
