// CLAUDE:SUMMARY Entry point for the greenlight crawl engine — loads config, opens the store, wires the connectivity router, and runs the Crawl Engine.
// Command greenlight is the adaptive web reconnaissance engine's process
// entry point.
//
// Usage:
//
//	greenlight -config greenlight.yaml
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wrenfield/greenlight/advisor"
	"github.com/wrenfield/greenlight/config"
	"github.com/wrenfield/greenlight/connectivity"
	"github.com/wrenfield/greenlight/crawler"
	"github.com/wrenfield/greenlight/internal/browser"
	"github.com/wrenfield/greenlight/internal/fetcher"
	"github.com/wrenfield/greenlight/idgen"
	"github.com/wrenfield/greenlight/mutator"
	"github.com/wrenfield/greenlight/observability"
	"github.com/wrenfield/greenlight/store"
)

func main() {
	configPath := flag.String("config", "greenlight.yaml", "path to greenlight.yaml config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("greenlight: fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var storeOpts []store.OpenOption
	if cfg.Store.SessionKeyHex != "" {
		cipher, err := sessionCipherFromHex(cfg.Store.SessionKeyHex)
		if err != nil {
			return fmt.Errorf("store session key: %w", err)
		}
		storeOpts = append(storeOpts, store.WithSessionCipher(cipher))
	}

	st, err := store.OpenWith(cfg.Store.Path, storeOpts)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	metrics := observability.NewMetricsManager(st.DB, 256, 5*time.Second)
	defer metrics.Close()
	events := observability.NewEventLogger(st.DB)
	audit := observability.NewAuditLogger(st.DB, 256)
	defer audit.Close()

	httpClient, err := crawler.NewHTTPClient(crawler.ProxyConfig{
		Enabled:            cfg.Proxy.Enabled,
		Type:               cfg.Proxy.Type,
		Host:               cfg.Proxy.Host,
		Port:               cfg.Proxy.Port,
		InsecureSkipVerify: cfg.Inspection.Host != "",
	}, requestTimeout(cfg))
	if err != nil {
		return fmt.Errorf("build http client: %w", err)
	}

	f := fetcher.New(fetcher.WithClient(httpClient), fetcher.WithLogger(logger))

	mut := mutator.New(st, mutator.WithIDGenerator(idgen.Prefixed("dna_", idgen.Default)))

	adv := buildAdvisor(cfg, logger)

	engOpts := []crawler.Option{
		crawler.WithMetrics(metrics),
		crawler.WithLogger(logger),
		crawler.WithRequestTimeout(requestTimeout(cfg)),
		crawler.WithIDGenerator(idgen.Prefixed("session_", idgen.Default)),
	}

	if cfg.Browser.Enabled {
		mgr, err := startBrowser(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		defer mgr.Close()
		engOpts = append(engOpts, crawler.WithBrowser(mgr))
	}

	eng := crawler.New(st, mut, f, adv, engOpts...)

	router := connectivity.New(connectivity.WithLogger(logger))
	registerHandlers(router, eng, st, audit, events)

	logger.Info("greenlight: started", "store", cfg.Store.Path)
	<-ctx.Done()
	logger.Info("greenlight: shutting down")
	return router.Close()
}

func requestTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Request.TimeoutMs) * time.Millisecond
}

// startBrowser launches the Rod-driven escalation browser per
// config.BrowserConfig and returns the running Manager. The caller is
// responsible for closing it on shutdown.
func startBrowser(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*browser.Manager, error) {
	stealth := browser.LevelHeadless
	if cfg.Browser.Headful {
		stealth = browser.LevelHeadful
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.RemoteURL,
		MemoryLimit:      cfg.Browser.MemoryLimitMB << 20,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Stealth:          stealth,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})

	if _, err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}

// sessionCipherFromHex decodes a 64-character hex string into a 32-byte
// key and wraps it in a store.SessionCipher.
func sessionCipherFromHex(keyHex string) (*store.SessionCipher, error) {
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("session key must be 32 bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return store.NewSessionCipher(key), nil
}

func buildAdvisor(cfg *config.Config, logger *slog.Logger) *advisor.Advisor {
	if cfg.Advisor.APIKey == "" {
		logger.Info("greenlight: advisor credentials absent, using offline fallback")
		return advisor.New(advisor.OfflineClient{}, advisor.WithLogger(logger))
	}

	client, err := advisor.NewSDKClient(cfg.Advisor.APIKey, cfg.Advisor.Model, cfg.Advisor.MaxTokens, cfg.Advisor.Temperature)
	if err != nil {
		logger.Warn("greenlight: advisor client unavailable, falling back to offline", "error", err)
		return advisor.New(advisor.OfflineClient{}, advisor.WithLogger(logger))
	}
	return advisor.New(client, advisor.WithLogger(logger))
}

// registerHandlers wires the domain's local service handlers into the
// router — crawl.start/stop/pause/resume and target.get — so that an
// out-of-scope HTTP/websocket surface can dispatch into this process
// without depending on the Crawl Engine's Go types directly.
func registerHandlers(router *connectivity.Router, eng *crawler.Engine, st *store.Store, audit *observability.AuditLogger, events *observability.EventLogger) {
	router.RegisterLocal("crawl.start", func(ctx context.Context, payload []byte) ([]byte, error) {
		var req struct {
			TargetID      string `json:"targetId"`
			SeedURL       string `json:"seedUrl"`
			Mode          string `json:"mode"`
			Goal          string `json:"goal"`
			MaxDurationS  int    `json:"maxDurationSeconds"`
			MaxIterations int    `json:"maxIterations"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("crawl.start: decode: %w", err)
		}

		started := time.Now()
		sess, err := eng.Start(ctx, crawler.StartRequest{
			TargetID:      req.TargetID,
			SeedURL:       req.SeedURL,
			Mode:          req.Mode,
			Goal:          req.Goal,
			MaxDuration:   time.Duration(req.MaxDurationS) * time.Second,
			MaxIterations: req.MaxIterations,
		})
		audit.LogAsync(audit.NewAuditEntry("crawl", "start", req, sess, err, time.Since(started)))
		events.LogEvent(ctx, observability.BusinessEvent{
			EventType:   "crawl.start",
			ServiceName: "greenlight",
			EntityType:  "target",
			EntityID:    req.TargetID,
			Action:      "start",
			Success:     err == nil,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			SessionID string `json:"sessionId"`
		}{SessionID: sess.ID})
	})

	router.RegisterLocal("crawl.pause", sessionIDHandler(eng.Pause))
	router.RegisterLocal("crawl.resume", sessionIDHandler(eng.Resume))
	router.RegisterLocal("crawl.stop", sessionIDHandler(eng.Stop))

	router.RegisterLocal("target.get", func(ctx context.Context, payload []byte) ([]byte, error) {
		var req struct {
			TargetID string `json:"targetId"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("target.get: decode: %w", err)
		}
		t, err := st.GetTarget(ctx, req.TargetID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(t)
	})
}

func sessionIDHandler(fn func(id string) error) connectivity.Handler {
	return func(_ context.Context, payload []byte) ([]byte, error) {
		var req struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		if err := fn(req.SessionID); err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			OK bool `json:"ok"`
		}{OK: true})
	}
}
