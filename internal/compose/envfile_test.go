package compose

import (
	"strings"
	"testing"
)

func TestLoadEnvFilesMergeOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.env", "POSTGRES_USER=app\nPOSTGRES_DB=app\n")
	writeFile(t, dir, "local.env", "POSTGRES_DB=app_dev\nDEBUG=1\n")

	values, err := loadEnvFiles(dir, []string{"base.env", "local.env"})
	if err != nil {
		t.Fatalf("loadEnvFiles returned error: %v", err)
	}
	want := map[string]string{
		"POSTGRES_USER": "app",
		"POSTGRES_DB":   "app_dev",
		"DEBUG":         "1",
	}
	for k, v := range want {
		if values[k] != v {
			t.Fatalf("key %s = %q, want %q (all: %v)", k, values[k], v, values)
		}
	}
}

func TestLoadEnvFilesQuoting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", `
# connection settings
DATABASE_URL="postgres://app:secret@db:5432/app"
EMPTY=
SPACED='a b c'
`)

	values, err := loadEnvFiles(dir, []string{".env"})
	if err != nil {
		t.Fatalf("loadEnvFiles returned error: %v", err)
	}
	if got := values["DATABASE_URL"]; got != "postgres://app:secret@db:5432/app" {
		t.Fatalf("DATABASE_URL = %q", got)
	}
	if got, ok := values["EMPTY"]; !ok || got != "" {
		t.Fatalf("EMPTY = %q, ok=%v", got, ok)
	}
	if got := values["SPACED"]; got != "a b c" {
		t.Fatalf("SPACED = %q", got)
	}
}

func TestLoadEnvFilesMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := loadEnvFiles(dir, []string{"nope.env"})
	if err == nil {
		t.Fatalf("expected error for missing env file")
	}
	if !strings.Contains(err.Error(), "load env file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadEnvFilesNone(t *testing.T) {
	values, err := loadEnvFiles(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("loadEnvFiles returned error: %v", err)
	}
	if values != nil {
		t.Fatalf("expected nil map, got %v", values)
	}
}
