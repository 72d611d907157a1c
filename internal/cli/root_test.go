package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const testManifest = `
services:
  db:
    image: postgres:16
    env_file: .env
    ports:
      - "5432:5432"
    networks:
      - appnet
    volumes:
      - pgdata:/var/lib/postgresql/data
    healthcheck:
      test: ["CMD-SHELL", "pg_isready -U app"]
      timeout: 20s
      retries: 10
  backend:
    image: app:latest
    environment:
      DATABASE_URL: ${DATABASE_URL}
    ports:
      - "8000:8000"
    networks:
      - appnet
    depends_on:
      db:
        condition: service_healthy
volumes:
  pgdata:
networks:
  appnet:
`

const testEnvFile = "POSTGRES_USER=app\nPOSTGRES_PASSWORD=hunter2\n"

// writeProject lays a manifest and its env file out in a temp dir and
// returns the manifest path.
func writeProject(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "compose.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(testEnvFile), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

// runBerth executes the root command with captured output streams.
func runBerth(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestRootUnknownCommand(t *testing.T) {
	_, _, err := runBerth(t, "teleport")
	if err == nil {
		t.Fatalf("expected error for unknown command")
	}
}
