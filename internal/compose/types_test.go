package compose

import (
	"strings"
	"testing"
)

func parseManifest(t *testing.T, manifest string) (*Project, error) {
	t.Helper()
	return Parse(strings.NewReader(manifest))
}

func TestParseValidManifest(t *testing.T) {
	project, err := parseManifest(t, `
services:
  db:
    image: postgres:16
    restart: always
    ports:
      - "5432:5432"
    networks:
      - appnet
    volumes:
      - pgdata:/var/lib/postgresql/data
    healthcheck:
      test: ["CMD-SHELL", "pg_isready -U postgres"]
      timeout: 20s
      retries: 10
  backend:
    build: .
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
`)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	db := project.Services["db"]
	if db == nil {
		t.Fatalf("service db missing")
	}
	if got, want := db.Healthcheck.EffectiveTimeout().String(), "20s"; got != want {
		t.Fatalf("timeout mismatch: got %s want %s", got, want)
	}
	if got, want := db.Healthcheck.EffectiveRetries(), 10; got != want {
		t.Fatalf("retries mismatch: got %d want %d", got, want)
	}
	if got, want := db.Healthcheck.EffectiveInterval(), DefaultHealthInterval; got != want {
		t.Fatalf("interval default mismatch: got %v want %v", got, want)
	}

	backend := project.Services["backend"]
	if backend == nil {
		t.Fatalf("service backend missing")
	}
	dep, ok := backend.DependsOn.Get("db")
	if !ok {
		t.Fatalf("backend dependency on db missing")
	}
	if got, want := dep.EffectiveCondition(), ConditionHealthy; got != want {
		t.Fatalf("condition mismatch: got %q want %q", got, want)
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name     string
		manifest string
		want     []string
	}{
		{
			name:     "no services",
			manifest: "services: {}\n",
			want:     []string{"services", "at least one service"},
		},
		{
			name: "image or build required",
			manifest: `
services:
  app:
    restart: always
`,
			want: []string{"services.app", "requires an image or a build context"},
		},
		{
			name: "invalid image reference",
			manifest: `
services:
  app:
    image: "registry.example.com/app:latest:extra"
`,
			want: []string{"services.app.image", "invalid image reference"},
		},
		{
			name: "invalid restart policy",
			manifest: `
services:
  app:
    image: nginx
    restart: sometimes
`,
			want: []string{"services.app.restart", "invalid restart policy"},
		},
		{
			name: "healthy condition without healthcheck",
			manifest: `
services:
  db:
    image: postgres:16
  app:
    image: nginx
    depends_on:
      db:
        condition: service_healthy
`,
			want: []string{"services.app.depends_on[db].condition", "requires service \"db\" to define a healthcheck"},
		},
		{
			name: "unknown dependency target",
			manifest: `
services:
  app:
    image: nginx
    depends_on:
      - cache
`,
			want: []string{"services.app.depends_on[cache]", "unknown service"},
		},
		{
			name: "self dependency",
			manifest: `
services:
  app:
    image: nginx
    depends_on:
      - app
`,
			want: []string{"services.app.depends_on[app]", "cannot depend on itself"},
		},
		{
			name: "invalid dependency condition",
			manifest: `
services:
  db:
    image: postgres:16
  app:
    image: nginx
    depends_on:
      db:
        condition: service_ready
`,
			want: []string{"services.app.depends_on[db].condition", "invalid value"},
		},
		{
			name: "undeclared volume",
			manifest: `
services:
  db:
    image: postgres:16
    volumes:
      - pgdata:/var/lib/postgresql/data
`,
			want: []string{"services.db.volumes[0]", "undeclared volume \"pgdata\""},
		},
		{
			name: "undeclared network",
			manifest: `
services:
  app:
    image: nginx
    networks:
      - frontend
`,
			want: []string{"services.app.networks[0]", "undeclared network \"frontend\""},
		},
		{
			name: "duplicate container name",
			manifest: `
services:
  one:
    image: nginx
    container_name: app
  two:
    image: nginx
    container_name: app
`,
			want: []string{"container_name", "already used by service"},
		},
		{
			name: "healthcheck without test",
			manifest: `
services:
  db:
    image: postgres:16
    healthcheck:
      retries: 3
`,
			want: []string{"services.db.healthcheck.test", "is required"},
		},
		{
			name: "healthcheck unknown kind",
			manifest: `
services:
  db:
    image: postgres:16
    healthcheck:
      test: ["EXEC", "true"]
`,
			want: []string{"services.db.healthcheck.test", "first element must be one of"},
		},
		{
			name: "negative retries",
			manifest: `
services:
  db:
    image: postgres:16
    healthcheck:
      test: ["CMD", "true"]
      retries: -1
`,
			want: []string{"services.db.healthcheck.retries", "non-negative"},
		},
		{
			name: "invalid watch action",
			manifest: `
services:
  app:
    image: nginx
    develop:
      watch:
        - action: reload
          path: ./src
`,
			want: []string{"services.app.develop.watch[0]", "invalid watch action"},
		},
		{
			name: "host port collision",
			manifest: `
services:
  one:
    image: nginx
    ports:
      - "8080:80"
  two:
    image: nginx
    ports:
      - "8080:80"
`,
			want: []string{"host port 8080", "conflicts with service(s) one, two"},
		},
		{
			name: "wildcard bind collides with earlier specific bind",
			manifest: `
services:
  api:
    image: nginx
    ports:
      - "127.0.0.1:8080:80"
  web:
    image: nginx
    ports:
      - "8080:80"
`,
			want: []string{"services.web.ports[0]", "host port 8080", "conflicts with service(s) api, web"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseManifest(t, tc.manifest)
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			for _, want := range tc.want {
				if !strings.Contains(err.Error(), want) {
					t.Fatalf("expected error to contain %q, got %v", want, err)
				}
			}
		})
	}
}

func TestValidatePortSuccess(t *testing.T) {
	cases := []string{
		"8080:8080",
		"127.0.0.1:9090:8080",
		"[2001:db8::1]:8080:8080",
		"0.0.0.0:8443:443/tcp",
		"8080-8081:8080-8081/udp",
		"5432",
	}
	for _, spec := range cases {
		spec := spec
		t.Run(spec, func(t *testing.T) {
			if err := validatePort(spec); err != nil {
				t.Fatalf("validatePort(%q) returned error: %v", spec, err)
			}
		})
	}
}

func TestValidatePortFailures(t *testing.T) {
	cases := []struct {
		name string
		spec string
		want string
	}{
		{name: "missing container port", spec: "8080:", want: "No port specified"},
		{name: "invalid host ip", spec: "localhost:8080:80", want: "Invalid ip address"},
		{name: "invalid proto", spec: "127.0.0.1:8080:80/foo", want: "Invalid proto"},
		{name: "host port zero", spec: "0:8080", want: "host port must be in range"},
		{name: "container port zero", spec: "8080:0", want: "container port must be in range"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := validatePort(tc.spec)
			if err == nil {
				t.Fatalf("validatePort(%q) returned nil error", tc.spec)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error for %q: got %q want substring %q", tc.spec, err, tc.want)
			}
		})
	}
}

func TestWildcardPortConflictsRegardlessOfOrder(t *testing.T) {
	wildcard := &Service{Image: "nginx", Ports: []string{"0.0.0.0:8080:80"}}
	specific := &Service{Image: "nginx", Ports: []string{"127.0.0.1:8080:80"}}

	t.Run("specific before wildcard", func(t *testing.T) {
		claimed := portClaims{}
		if err := claimServicePorts("specific", specific, claimed); err != nil {
			t.Fatalf("claim specific service: %v", err)
		}
		if err := claimServicePorts("wildcard", wildcard, claimed); err == nil {
			t.Fatalf("expected conflict, got nil")
		}
	})

	t.Run("wildcard before specific", func(t *testing.T) {
		claimed := portClaims{}
		if err := claimServicePorts("wildcard", wildcard, claimed); err != nil {
			t.Fatalf("claim wildcard service: %v", err)
		}
		if err := claimServicePorts("specific", specific, claimed); err == nil {
			t.Fatalf("expected conflict, got nil")
		}
	})
}

func TestEffectiveEnvironmentPassthrough(t *testing.T) {
	project, err := parseManifest(t, `
services:
  app:
    image: nginx
    environment:
      PRESENT:
      ABSENT:
      INLINE: declared
`)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	env := project.Services["app"].EffectiveEnvironment(testLookup(map[string]string{
		"PRESENT": "from-caller",
	}))
	if got, want := env["PRESENT"], "from-caller"; got != want {
		t.Fatalf("PRESENT = %q, want %q", got, want)
	}
	if got, want := env["INLINE"], "declared"; got != want {
		t.Fatalf("INLINE = %q, want %q", got, want)
	}
	if _, ok := env["ABSENT"]; ok {
		t.Fatalf("unset passthrough variable should be omitted, got %#v", env)
	}
}

func TestWarnings(t *testing.T) {
	project, err := parseManifest(t, `
services:
  one:
    image: nginx
    volumes:
      - ./shared:/data
  two:
    image: nginx
    volumes:
      - ./shared:/data
volumes:
  unused:
networks:
  lonely:
`)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	warnings := project.Warnings()
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %d: %#v", len(warnings), warnings)
	}
	joined := strings.Join(warnings, "\n")
	for _, want := range []string{
		"share writable mount \"./shared\"",
		"volume \"unused\" is declared but not mounted",
		"network \"lonely\" is declared but not joined",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected warnings to contain %q, got %#v", want, warnings)
		}
	}
}

func TestWarningsReadOnlyMountsExcluded(t *testing.T) {
	project, err := parseManifest(t, `
services:
  one:
    image: nginx
    volumes:
      - ./shared:/data:ro
  two:
    image: nginx
    volumes:
      - ./shared:/data
`)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if warnings := project.Warnings(); len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %#v", warnings)
	}
}
