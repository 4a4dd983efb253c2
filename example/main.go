// Command example is a small multi-account CLI on top of switchboard.
//
//	example login <username> <password>
//	example logout
//	example logout-all
//	example switch <user-id>
//	example list
//	example check
//	example demo
//
// Configuration comes from the environment (and an optional .env file):
//
//	SWITCHBOARD_AUTH_URL    auth service API root (default http://localhost:8787/api)
//	SWITCHBOARD_DB          SQLite file (default switchboard.db)
//	SWITCHBOARD_MYSQL_DSN   use a MySQL store instead of SQLite
//	SWITCHBOARD_REDIS_ADDR  use a Redis store instead of SQLite
//	SWITCHBOARD_PROFILE     owner key for shared stores (default "default")
//	SWITCHBOARD_TIMEOUT     request timeout (default 10s)
//	LOG_LEVEL, LOG_FORMAT   debug|info|warn|error, text|json
//
// "demo" needs no auth service: it starts a local fake one and walks
// through a multi-account session.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go-simpler.org/env"

	"github.com/aadithya-v/switchboard"
	"github.com/aadithya-v/switchboard/gateway"
	"github.com/aadithya-v/switchboard/gateway/gatewaytest"
	"github.com/aadithya-v/switchboard/store"
)

type cliConfig struct {
	AuthURL      string        `env:"SWITCHBOARD_AUTH_URL" default:"http://localhost:8787/api"`
	DatabasePath string        `env:"SWITCHBOARD_DB" default:"switchboard.db"`
	MySQLDSN     string        `env:"SWITCHBOARD_MYSQL_DSN"`
	RedisAddr    string        `env:"SWITCHBOARD_REDIS_ADDR"`
	Profile      string        `env:"SWITCHBOARD_PROFILE" default:"default"`
	Timeout      time.Duration `env:"SWITCHBOARD_TIMEOUT" default:"10s"`
	LogLevel     string        `env:"LOG_LEVEL" default:"info"`
	LogFormat    string        `env:"LOG_FORMAT" default:"text"`
}

func loadConfig() (*cliConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg cliConfig
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return &cfg, nil
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	if cmd == "demo" {
		if err := runDemo(ctx, logger); err != nil {
			logger.Error("demo failed", "error", err)
			os.Exit(1)
		}
		return
	}

	m, err := openManager(cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	if err := run(ctx, m, cmd, args); err != nil {
		logger.Error(cmd+" failed", "error", err)
		m.Close()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: example <login user pass | logout | logout-all | switch id | list | check | demo>")
}

func openManager(cfg *cliConfig, logger *slog.Logger) (*switchboard.Manager, error) {
	client, err := gateway.New(gateway.Config{
		BaseURL: cfg.AuthURL,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	kv, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	m, err := switchboard.New(switchboard.Config{
		Gateway:      client,
		Store:        kv,
		DatabasePath: cfg.DatabasePath,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	if err := m.Init(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// openStore returns nil for the default SQLite store.
func openStore(cfg *cliConfig) (store.KeyValueStore, error) {
	switch {
	case cfg.MySQLDSN != "":
		return store.NewMySQLFromDSN(cfg.MySQLDSN, cfg.Profile)
	case cfg.RedisAddr != "":
		return store.NewRedisFromConfig(store.RedisConfig{
			Addr:      cfg.RedisAddr,
			KeyPrefix: "switchboard:" + cfg.Profile + ":",
		})
	default:
		return nil, nil
	}
}

func run(ctx context.Context, m *switchboard.Manager, cmd string, args []string) error {
	switch cmd {
	case "login":
		if len(args) != 2 {
			usage()
			return fmt.Errorf("login needs a username and a password")
		}
		return login(ctx, m, args[0], args[1])

	case "logout":
		if err := m.Logout(ctx); err != nil {
			return err
		}
		printSessions(m)

	case "logout-all":
		return m.LogoutAll()

	case "switch":
		if len(args) != 1 {
			return fmt.Errorf("switch needs a user id")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", args[0], err)
		}
		if err := m.SwitchUser(id); err != nil {
			return err
		}
		printSessions(m)

	case "list":
		printSessions(m)

	case "check":
		live, err := m.CheckSession(ctx)
		if err != nil {
			return err
		}
		if live {
			fmt.Println("session is live")
		} else {
			fmt.Println("not authenticated")
		}
		printSessions(m)

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func login(ctx context.Context, m *switchboard.Manager, username, password string) error {
	resp, err := m.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if !resp.Issued() {
		fmt.Printf("login rejected: %s\n", resp.Message)
		return nil
	}
	printSessions(m)
	return nil
}

func printSessions(m *switchboard.Manager) {
	sessions := m.Sessions()
	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return
	}

	active, _ := m.Active()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tUSER ID\tUSERNAME\tEXPIRES")
	for _, s := range sessions {
		marker := ""
		if s.UserID == active.UserID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", marker, s.UserID, s.Username, s.Expiry().Format(time.RFC3339))
	}
	w.Flush()
}

// runDemo drives a manager against an in-process auth service with a
// throwaway SQLite file.
func runDemo(ctx context.Context, logger *slog.Logger) error {
	srv := gatewaytest.NewServer(nil)
	defer srv.Close()

	srv.AddUser("alice", "wonderland")
	srv.AddUser("bob", "builder")

	dir, err := os.MkdirTemp("", "switchboard-demo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	client, err := gateway.New(gateway.Config{BaseURL: srv.BaseURL(), Logger: logger})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	cfg := switchboard.Config{
		Gateway:      client,
		DatabasePath: filepath.Join(dir, "demo.db"),
		Logger:       logger,
		Metrics:      reg,
	}
	m, err := switchboard.New(cfg)
	if err != nil {
		return err
	}
	if err := m.Init(); err != nil {
		return err
	}

	step := func(title string) { fmt.Printf("\n== %s\n", title) }

	step("log in as alice, then bob")
	if err := login(ctx, m, "alice", "wonderland"); err != nil {
		return err
	}
	if err := login(ctx, m, "bob", "builder"); err != nil {
		return err
	}

	step("wrong password")
	if err := login(ctx, m, "alice", "nope"); err != nil {
		return err
	}

	step("switch back to alice (user 1)")
	if err := run(ctx, m, "switch", []string{"1"}); err != nil {
		return err
	}

	step("call the API with the active token")
	api := gateway.NewAuthorizedClient(m, 0)
	resp, err := api.Get(srv.BaseURL() + "/auth/check")
	if err != nil {
		return err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	fmt.Printf("GET /auth/check -> %d %s", resp.StatusCode, body)

	step("the service revokes alice; the next check notices")
	srv.RevokeUser("alice")
	if err := run(ctx, m, "check", nil); err != nil {
		return err
	}

	step("restart: state is reloaded from disk")
	m.Close()
	cfg.Metrics = nil
	if m, err = switchboard.New(cfg); err != nil {
		return err
	}
	defer m.Close()
	if err := m.Init(); err != nil {
		return err
	}
	printSessions(m)

	step("log out bob even though the service fails")
	srv.FailLogout(http.StatusInternalServerError)
	if err := run(ctx, m, "logout", nil); err != nil {
		return err
	}

	step("metrics from the first run")
	printMetrics(reg)
	return nil
}

func printMetrics(reg *prometheus.Registry) {
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if strings.HasPrefix(line, "switchboard_") {
			fmt.Println(line)
		}
	}
}
