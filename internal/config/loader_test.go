package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/zcalc/internal/config"
	"github.com/okian/zcalc/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
				convey.So(cfg.RequestTimeoutMS, convey.ShouldEqual, 2000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ZCALC_ADDR", ":8080")
			_ = os.Setenv("ZCALC_STORE_DRIVER", "sqlite")
			_ = os.Setenv("ZCALC_STORE_DSN", "file:lms.db")
			_ = os.Setenv("ZCALC_REQUEST_TIMEOUT_MS", "750")
			_ = os.Setenv("ZCALC_DEBUG_RESPONSES", "true")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.StoreDSN, convey.ShouldEqual, "file:lms.db")
				convey.So(cfg.RequestTimeoutMS, convey.ShouldEqual, 750)
				convey.So(cfg.DebugResponses, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
log_level: debug
store_driver: redis
store_dsn: "redis://localhost:6379/0"
store_key_prefix: ref
`)
			_ = os.Setenv("ZCALC_CONFIG", tmpFile)
			_ = os.Setenv("ZCALC_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")                        // env
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")                    // file
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "redis")                 // file
				convey.So(cfg.StoreDSN, convey.ShouldEqual, "redis://localhost:6379/0") // file
				convey.So(cfg.StoreKeyPrefix, convey.ShouldEqual, "ref")                // file
				convey.So(cfg.StoreTable, convey.ShouldEqual, "lms_reference")          // default
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("ZCALC_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("ZCALC_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("ZCALC_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a networked driver is configured without a DSN", func() {
			_ = os.Setenv("ZCALC_STORE_DRIVER", "postgres")

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "store_dsn")
			})
		})
	})
}

func TestConfigWatch(t *testing.T) {
	convey.Convey("Given a watched config file", t, func() {
		clearConfigEnvVars()
		path := createTempConfigFile(t, "log_level: info\n")
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var (
			mu      sync.Mutex
			reloads []*config.Config
		)
		done := make(chan error, 1)
		go func() {
			done <- config.Watch(ctx, path, logger.Nop(), func(c *config.Config) {
				mu.Lock()
				reloads = append(reloads, c)
				mu.Unlock()
			})
		}()

		latest := func() *config.Config {
			mu.Lock()
			defer mu.Unlock()
			if len(reloads) == 0 {
				return nil
			}
			return reloads[len(reloads)-1]
		}

		convey.Convey("When the file is rewritten", func() {
			// Rewrite until the watcher has registered and picked a change up.
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				_ = os.WriteFile(path, []byte("log_level: debug\n"), 0o600)
				if c := latest(); c != nil && c.LogLevel == "debug" {
					break
				}
				time.Sleep(50 * time.Millisecond)
			}

			convey.Convey("Then the new config is delivered", func() {
				c := latest()
				convey.So(c, convey.ShouldNotBeNil)
				convey.So(c.LogLevel, convey.ShouldEqual, "debug")
			})

			convey.Convey("And cancelling the context stops the watcher", func() {
				cancel()
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(2 * time.Second):
					convey.So("watcher did not stop", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When the path does not exist", func() {
			err := config.Watch(ctx, filepath.Join(t.TempDir(), "missing.yaml"), logger.Nop(), func(*config.Config) {})

			convey.Convey("Then Watch fails immediately", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

// Helper functions.
func clearConfigEnvVars() {
	for _, key := range []string{
		"ZCALC_CONFIG", "ZCALC_ADDR", "ZCALC_LOG_LEVEL", "ZCALC_LOG_FORMAT",
		"ZCALC_REQUEST_TIMEOUT_MS", "ZCALC_DEBUG_RESPONSES",
		"ZCALC_STORE_DRIVER", "ZCALC_STORE_DSN", "ZCALC_STORE_TABLE",
		"ZCALC_STORE_KEY_PREFIX", "ZCALC_STORE_SEED_CSV", "ZCALC_STORE_SEED_ATTRIBUTE",
	} {
		_ = os.Unsetenv(key)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zcalc.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
