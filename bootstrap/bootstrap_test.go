package bootstrap_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redisdriver "github.com/artpar/datalayer/adapters/redis"
	"github.com/artpar/datalayer/adapters/sqlite"
	"github.com/artpar/datalayer/bootstrap"
	"github.com/artpar/datalayer/config"
	"github.com/artpar/datalayer/core/schema"
	"github.com/rs/zerolog"
)

const userSchema = `{"title": "user", "type": "object", "properties": {"_id": {"type": "string"}, "_email": {"type": "string"}}}`

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()

	root := t.TempDir()
	dir := filepath.Join(root, "latest")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "user.json"), []byte(userSchema), 0o644); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(root, "config.yaml")
	content := "schemas:\n  uri: file://" + root + "\ndatabase:\n  driver: " + driver +
		"\n  dsn: " + filepath.Join(root, "test.db") + "\nmetrics:\n  enabled: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *bootstrap.App {
	t.Helper()

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{LogOutput: &bytes.Buffer{}, Version: "test"})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	t.Cleanup(func() { app.Shutdown() })
	return app
}

func TestBootstrap_Drivers(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		driver string
		check  func(t *testing.T, app *bootstrap.App)
	}{
		{config.DriverMemory, func(t *testing.T, app *bootstrap.App) {
			if app.DB != nil || app.Redis != nil {
				t.Error("memory driver should not open a backend")
			}
		}},
		{config.DriverSQLite, func(t *testing.T, app *bootstrap.App) {
			if _, ok := app.Driver.(*sqlite.Driver); !ok {
				t.Errorf("Driver = %T, want *sqlite.Driver", app.Driver)
			}
			var n int
			if err := app.DB.QueryRow("SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
				t.Errorf("query documents table: %v", err)
			}
		}},
		{config.DriverRedis, func(t *testing.T, app *bootstrap.App) {
			if _, ok := app.Driver.(*redisdriver.Driver); !ok {
				t.Errorf("Driver = %T, want *redis.Driver", app.Driver)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg := testConfig(t, tt.driver)
			cfg.Redis.Addr = mr.Addr()

			app := newApp(t, cfg)
			tt.check(t, app)

			srv := httptest.NewServer(app.HTTPServer.Handler)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/objects/user", "application/json", strings.NewReader(`{"_id":"u1","email":"a@example.com"}`))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Fatalf("create status = %d", resp.StatusCode)
			}

			resp, err = http.Get(srv.URL + "/objects/user?attr=email&value=a@example.com")
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("find status = %d", resp.StatusCode)
			}

			resp, err = http.Get(srv.URL + "/metrics")
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("metrics status = %d", resp.StatusCode)
			}
		})
	}
}

func TestBootstrap_Errors(t *testing.T) {
	t.Run("unsupported schema source", func(t *testing.T) {
		cfg := testConfig(t, config.DriverMemory)
		cfg.Schemas.URI = "https://example.com/schema"

		_, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{LogOutput: &bytes.Buffer{}})
		if !errors.Is(err, schema.ErrUnsupportedSchemaSource) {
			t.Errorf("error = %v, want ErrUnsupportedSchemaSource", err)
		}
	})

	t.Run("unreachable redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		cfg := testConfig(t, config.DriverRedis)
		cfg.Redis.Addr = addr

		if _, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{LogOutput: &bytes.Buffer{}}); err == nil {
			t.Error("expected error for unreachable redis")
		}
	})
}

func TestBootstrap_GracefulShutdown(t *testing.T) {
	app, err := bootstrap.New(context.Background(), testConfig(t, config.DriverSQLite), bootstrap.Options{LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	db := app.DB

	if err := app.Shutdown(); err != nil {
		t.Errorf("shutdown error: %v", err)
	}
	if _, err := db.Query("SELECT 1"); err == nil {
		t.Error("expected error querying closed database")
	}
	if err := app.Shutdown(); err != nil {
		t.Errorf("second shutdown error: %v", err)
	}
}

func TestBootstrap_RunStopsOnContext(t *testing.T) {
	cfg := testConfig(t, config.DriverMemory)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	app := newApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Errorf("Run error: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	logger := bootstrap.NewLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"message":"shown"`) {
		t.Errorf("log output = %q", buf.String())
	}

	buf.Reset()
	logger = bootstrap.NewLogger(config.LoggingConfig{Level: "bogus", Format: "console"}, &buf)
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("GlobalLevel = %v, want info", zerolog.GlobalLevel())
	}
	logger.Info().Msg("console line")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "console line") {
		t.Errorf("console output = %q", buf.String())
	}

	if err := bootstrap.SetLogLevel("nope"); err == nil {
		t.Error("SetLogLevel should reject unknown levels")
	}
}
