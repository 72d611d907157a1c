package cli

import (
	"strings"
	"testing"
)

func TestServicesTable(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://app@db:5432/app")
	path := writeProject(t, testManifest)

	stdout, _, err := runBerth(t, "-f", path, "services")
	if err != nil {
		t.Fatalf("services returned error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	if len(lines) < 3 {
		t.Fatalf("unexpected output:\n%s", stdout)
	}
	header := lines[0]
	for _, col := range []string{"SERVICE", "IMAGE", "PORTS", "DEPENDS ON", "HEALTH", "MEM"} {
		if !strings.Contains(header, col) {
			t.Fatalf("header missing column %s: %q", col, header)
		}
	}

	for _, fragment := range []string{
		"postgres:16",
		"5432:5432",
		"CMD-SHELL (timeout 20s, retries 10)",
		"db (service_healthy)",
	} {
		if !strings.Contains(stdout, fragment) {
			t.Fatalf("services output missing %q:\n%s", fragment, stdout)
		}
	}

	if !strings.Contains(stdout, "Startup order: db, backend") {
		t.Fatalf("startup order missing:\n%s", stdout)
	}
}

func TestServicesBuildOnly(t *testing.T) {
	path := writeProject(t, `
services:
  backend:
    build: ./api
`)
	stdout, _, err := runBerth(t, "-f", path, "services")
	if err != nil {
		t.Fatalf("services returned error: %v", err)
	}
	if !strings.Contains(stdout, "build:./api") {
		t.Fatalf("build placeholder missing from image column:\n%s", stdout)
	}
}
