package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/probitylabs/sealchain/internal/alert"
	"github.com/probitylabs/sealchain/internal/auditor/handler"
	"github.com/probitylabs/sealchain/internal/auditor/service"
	"github.com/probitylabs/sealchain/internal/auth"
	"github.com/probitylabs/sealchain/internal/checkpoint"
	"github.com/probitylabs/sealchain/internal/health"
	"github.com/probitylabs/sealchain/internal/incident"
	"github.com/probitylabs/sealchain/pkg/indexer"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("auditor exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("auditor")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("sealchain")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("auditor.port", 8080)
	viper.SetDefault("auditor.issuer_url", "")
	viper.SetDefault("auditor.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("auditor.rate_limit_rps", 20)
	viper.SetDefault("database.url", "")
	viper.SetDefault("indexer.url", "http://localhost:8090")
	viper.SetDefault("indexer.api_key", "")
	viper.SetDefault("indexer.rate_limit_rps", 0)
	viper.SetDefault("indexer.oauth2.client_id", "")
	viper.SetDefault("indexer.oauth2.client_secret", "")
	viper.SetDefault("indexer.oauth2.token_url", "")
	viper.SetDefault("auth.token_secret", "")
	viper.SetDefault("auth.token_ttl_seconds", 3600)
	viper.SetDefault("watcher.assets", []string{})
	viper.SetDefault("watcher.interval", "5m")
	viper.SetDefault("alerts.webhook_url", "")
	viper.SetDefault("alerts.webhook_secret", "")
	viper.SetDefault("alerts.email_to", "")
	viper.SetDefault("email.smtp_host", "")
	viper.SetDefault("email.smtp_port", 587)
	viper.SetDefault("email.smtp_username", "")
	viper.SetDefault("email.smtp_password", "")
	viper.SetDefault("email.from_address", "alerts@sealchain.dev")
	viper.SetDefault("health.check_interval", "30s")
	viper.SetDefault("health.probe_timeout", "5s")
	viper.SetDefault("health.fail_threshold", 3)

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── Storage ──────────────────────────────────────────────────────────────
	var (
		checkpoints checkpoint.Store
		incidents   incident.Repository
		db          *pgxpool.Pool
	)
	if dbURL := viper.GetString("database.url"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")

		db = pool
		checkpoints = checkpoint.NewPostgresStore(pool, logger)
		incidents = incident.NewPostgresRepository(pool)
	} else {
		logger.Warn("no database configured; checkpoints and incidents are in-memory")
		checkpoints = checkpoint.NewMemoryStore()
		incidents = incident.NewMemoryRepository()
	}

	// ── Indexer client ────────────────────────────────────────────────────────
	var clientOpts []indexer.Option
	if key := viper.GetString("indexer.api_key"); key != "" {
		clientOpts = append(clientOpts, indexer.WithAPIKey(key))
	}
	if id := viper.GetString("indexer.oauth2.client_id"); id != "" {
		clientOpts = append(clientOpts, indexer.WithOAuth2(
			id,
			viper.GetString("indexer.oauth2.client_secret"),
			viper.GetString("indexer.oauth2.token_url"),
		))
	}
	if rps := viper.GetInt("indexer.rate_limit_rps"); rps > 0 {
		clientOpts = append(clientOpts, indexer.WithRateLimit(float64(rps), rps*2))
	}

	source, err := indexer.New(viper.GetString("indexer.url"), clientOpts...)
	if err != nil {
		return fmt.Errorf("indexer client: %w", err)
	}
	logger.Info("indexer client ready", zap.String("url", viper.GetString("indexer.url")))

	// ── Auth ──────────────────────────────────────────────────────────────────
	httpPort := viper.GetInt("auditor.port")
	issuerURL := viper.GetString("auditor.issuer_url")
	if issuerURL == "" {
		issuerURL = fmt.Sprintf("http://localhost:%d", httpPort)
	}

	var tokens *auth.TokenIssuer
	if secret := viper.GetString("auth.token_secret"); secret != "" {
		ttl := time.Duration(viper.GetInt("auth.token_ttl_seconds")) * time.Second
		tokens = auth.NewTokenIssuer([]byte(secret), issuerURL, ttl)
	} else {
		logger.Warn("auth disabled — AUTH_TOKEN_SECRET is empty; audit triggers are open")
	}

	// ── Alerts ────────────────────────────────────────────────────────────────
	notifiers := alert.Multi{
		alert.NotifierFunc(func(_ context.Context, inc *incident.Incident) error {
			handler.RecordIncident(string(inc.Severity))
			return nil
		}),
	}
	if url := viper.GetString("alerts.webhook_url"); url != "" {
		webhook := alert.NewWebhookNotifier(url, viper.GetString("alerts.webhook_secret"), logger)
		webhook.SetMetricsRecorder(handler.RecordAlertDelivery)
		notifiers = append(notifiers, webhook)
		logger.Info("alert webhook configured", zap.String("url", url))
	}
	if to := viper.GetString("alerts.email_to"); to != "" && viper.GetString("email.smtp_host") != "" {
		sender := alert.NewSMTPSender(
			viper.GetString("email.smtp_host"),
			viper.GetInt("email.smtp_port"),
			viper.GetString("email.smtp_username"),
			viper.GetString("email.smtp_password"),
			viper.GetString("email.from_address"),
		)
		notifiers = append(notifiers, alert.NewEmailNotifier(sender, to))
		logger.Info("alert email configured", zap.String("to", to))
	}
	if len(notifiers) == 1 {
		notifiers = append(notifiers, alert.NewNopNotifier(logger))
	}

	// ── Audit service ─────────────────────────────────────────────────────────
	auditor := service.NewAuditor(source, checkpoints, incidents, notifiers, logger)
	auditor.SetMetricsRecorder(handler.RecordAudit)

	assets, err := parseAssets(viper.GetStringSlice("watcher.assets"))
	if err != nil {
		return fmt.Errorf("watcher assets: %w", err)
	}
	handler.SetWatchedAssets(len(assets))

	auditHandler := handler.NewAuditHandler(auditor, checkpoints, incidents, tokens, logger)

	// ── Health ────────────────────────────────────────────────────────────────
	checks := []health.Check{
		{Name: "indexer", Probe: health.HTTPProbe(nil, viper.GetString("indexer.url"))},
	}
	if db != nil {
		checks = append(checks, health.Check{Name: "postgres", Probe: db.Ping})
	}
	checker := health.New(health.Config{
		CheckInterval: viper.GetDuration("health.check_interval"),
		ProbeTimeout:  viper.GetDuration("health.probe_timeout"),
		FailThreshold: viper.GetInt("health.fail_threshold"),
	}, logger, checks...)
	checker.SetMetricsRecord(handler.SetDependencyUp)

	// ── HTTP Router ───────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("auditor.cors_origins")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	if rps := viper.GetInt("auditor.rate_limit_rps"); rps > 0 {
		router.Use(handler.RateLimiter(rps, rps*2))
	}

	router.Use(requestLogger(logger))
	router.Use(handler.PrometheusMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		st := checker.Status()
		code := http.StatusOK
		if !st.Ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, st)
	})
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	auditHandler.Register(v1)

	// ── Watcher ───────────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	stop := make(chan struct{})
	go checker.Start(stop)

	if len(assets) > 0 {
		interval := viper.GetDuration("watcher.interval")
		watcher := service.NewWatcher(auditor, assets, interval, logger)
		go watcher.Start(stop)
		logger.Info("watcher started",
			zap.Int("assets", len(assets)),
			zap.Duration("interval", interval),
		)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("auditor HTTP listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down auditor...")
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("auditor stopped")
	return nil
}

// parseAssets decodes the configured hex asset keys.
func parseAssets(raw []string) ([][]byte, error) {
	assets := make([][]byte, 0, len(raw))
	for i, s := range raw {
		b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
		if err != nil {
			return nil, fmt.Errorf("asset %d: %w", i, err)
		}
		if len(b) != 32 {
			return nil, fmt.Errorf("asset %d: got %d bytes, want 32", i, len(b))
		}
		assets = append(assets, b)
	}
	return assets, nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
