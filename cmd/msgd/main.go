package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/lenslink/messaging/internal/sweep"
	"github.com/lenslink/messaging/pkg/api"
	"github.com/lenslink/messaging/pkg/auth"
	"github.com/lenslink/messaging/pkg/config"
	"github.com/lenslink/messaging/pkg/logger"
	"github.com/lenslink/messaging/pkg/moderation"
	"github.com/lenslink/messaging/pkg/security"
	"github.com/lenslink/messaging/pkg/store"
	"github.com/lenslink/messaging/pkg/validation"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Logging.Level)

	// Flags win over config/env when explicitly set.
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := cfg.Server.DBPath
	if dbPath == "" || setFlags["db"] {
		dbPath = dbVal
	}

	// Cipher master secret. Message bodies are never stored in the clear,
	// so a missing key is a startup failure, not a degraded mode.
	mk := strings.TrimSpace(cfg.Security.MasterKeyHex)
	if f := strings.TrimSpace(cfg.Security.MasterKeyFile); f != "" {
		b, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("failed to read master key file %s: %v", f, err)
		}
		mk = strings.TrimSpace(string(b))
	}
	if mk == "" {
		log.Fatalf("no cipher master key configured: set security.master_key_file or security.master_key_hex")
	}
	if err := security.SetMasterKeyHex(mk); err != nil {
		log.Fatalf("invalid master key: %v", err)
	}

	terms := append([]string{}, cfg.Moderation.Denylist...)
	if f := strings.TrimSpace(cfg.Moderation.DenylistFile); f != "" {
		fileTerms, err := loadDenylistFile(f)
		if err != nil {
			log.Fatalf("failed to read denylist file %s: %v", f, err)
		}
		terms = append(terms, fileTerms...)
	}
	if len(terms) == 0 {
		log.Fatalf("moderation denylist is empty: set moderation.denylist or moderation.denylist_file")
	}

	if cfg.Limits.MaxPlaintext > 0 {
		validation.SetMaxPlaintextBytes(cfg.Limits.MaxPlaintext.Int64())
	}

	if err := store.Open(dbPath); err != nil {
		log.Fatalf("failed to open pebble at %s: %v", dbPath, err)
	}
	defer func() { _ = store.Close() }()

	gate := moderation.NewGate(
		moderation.NewDetector(terms),
		moderation.NewLedger(moderation.Policy{
			BanThreshold: cfg.Moderation.BanThreshold,
			BanDayFactor: cfg.Moderation.BanDayFactor,
		}),
	)

	secCfg := auth.SecConfig{
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		IPWhitelist:    cfg.Security.IPWhitelist,
		BackendKeys:    map[string]struct{}{},
		SigningKeys:    map[string]struct{}{},
	}
	for _, k := range cfg.Security.APIKeys.Backend {
		secCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range cfg.Security.SigningKeys {
		secCfg.SigningKeys[k] = struct{}{}
	}
	// Backend keys double as signing keys when no dedicated set is given.
	if len(secCfg.SigningKeys) == 0 {
		for k := range secCfg.BackendKeys {
			secCfg.SigningKeys[k] = struct{}{}
		}
	}
	auth.SetSigningKeys(secCfg.SigningKeys)

	apiSrv := &api.Server{Gate: gate}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))
	mux.Handle("/", auth.RequireSignedUser(apiSrv.Router()))
	handler := auth.Middleware(secCfg)(mux)

	ctx, cancel := context.WithCancel(context.Background())
	sweepCancel, err := sweep.Start(ctx, cfg.Sweep.Enabled, cfg.Sweep.Cron)
	if err != nil {
		log.Fatalf("failed to start moderation sweep: %v", err)
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String())
		sweepCancel()
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	srcs := []string{}
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}
	logger.Info("server_starting", "addr", addr, "db", dbPath, "config_sources", strings.Join(srcs, ","), "denylist_terms", len(terms))

	cert, key := cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile
	var errServe error
	if cert != "" && key != "" {
		errServe = srv.ListenAndServeTLS(cert, key)
	} else {
		errServe = srv.ListenAndServe()
	}
	if errServe != nil && errServe != http.ErrServerClosed {
		log.Fatal(errServe)
	}
}

// loadDenylistFile reads one term per line; blank lines and #-comments are
// skipped.
func loadDenylistFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}
