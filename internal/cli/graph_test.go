package cli

import (
	"strings"
	"testing"
)

func TestGraphTree(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://app@db:5432/app")
	path := writeProject(t, testManifest)

	stdout, _, err := runBerth(t, "-f", path, "graph")
	if err != nil {
		t.Fatalf("graph returned error: %v", err)
	}
	want := "backend\n└─ db (condition=service_healthy)\n"
	if stdout != want {
		t.Fatalf("graph output = %q, want %q", stdout, want)
	}
}

func TestGraphDOT(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://app@db:5432/app")
	path := writeProject(t, testManifest)

	stdout, _, err := runBerth(t, "-f", path, "graph", "--dot")
	if err != nil {
		t.Fatalf("graph returned error: %v", err)
	}
	for _, fragment := range []string{
		"digraph services {",
		`"backend" -> "db" [label="service_healthy"];`,
	} {
		if !strings.Contains(stdout, fragment) {
			t.Fatalf("DOT output missing %q:\n%s", fragment, stdout)
		}
	}
}

func TestGraphRejectsCycle(t *testing.T) {
	path := writeProject(t, `
services:
  a:
    image: one:latest
    depends_on:
      - b
  b:
    image: two:latest
    depends_on:
      - a
`)
	_, _, err := runBerth(t, "-f", path, "graph")
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "dependency cycle detected") {
		t.Fatalf("unexpected error: %v", err)
	}
}
