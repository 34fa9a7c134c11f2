package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Saksham338101/menu-scanner1/internal/config"
	"github.com/Saksham338101/menu-scanner1/internal/display"
	"github.com/Saksham338101/menu-scanner1/internal/logging"
	"github.com/Saksham338101/menu-scanner1/internal/server"
	"github.com/Saksham338101/menu-scanner1/internal/share"
)

var (
	servePort      int
	serveAccessLog bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the menu extraction HTTP server",
	Long: `Starts the HTTP server on port 8000 (or server.port, or $PORT).

Endpoints:
  POST /v1/menus/{restaurant}/extract  - extract a menu from {"menuImage": "<base64>"}
  GET  /v1/menus/{restaurant}/search   - search saved menus (?q=)
  GET  /v1/share/verify                - check a share token (?restaurant=&token=)
  POST /mcp                            - Model Context Protocol search tool
  GET  /health                         - liveness

Model credentials come from the config file or LLM_API_KEY, LLM_BASE_URL and
LLM_MODEL.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveAccessLog, "access-log", true, "Print a colored line per request")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Use PORT env variable if set (container environments)
	if envPort := os.Getenv("PORT"); envPort != "" {
		p, err := strconv.Atoi(envPort)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", envPort, err)
		}
		cfg.Server.Port = p
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("server config error: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ex, closeCache, err := newExtractor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Share.Secret == "" {
		logger.Warn("share.secret is empty, share links are signed with the development secret")
	}

	srvCfg := server.Config{
		Extractor:    ex,
		Signer:       share.NewSigner(cfg.Share.Secret, cfg.Share.TTL),
		Origin:       cfg.Share.Origin,
		RatePerMin:   cfg.Server.RatePerMin,
		Burst:        cfg.Server.Burst,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       logger,
		Version:      version,
	}
	if st.sinks.Len() > 0 {
		srvCfg.Sink = st.sinks
	}
	if st.graph != nil {
		srvCfg.Graph = st.graph
	}
	if st.vectors != nil {
		srvCfg.Vectors = st.vectors
	}
	if serveAccessLog {
		srvCfg.OnRequest = display.LogRequest
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	display.PrintBanner(bannerInfo(cfg, st))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
		return err
	}
	return nil
}

func bannerInfo(cfg *config.Config, st *stores) display.ServerInfo {
	info := display.ServerInfo{
		Version:       version,
		LLMModel:      cfg.LLM.Model,
		FallbackModel: cfg.LLM.FallbackModel,
		LLMBaseURL:    cfg.LLM.BaseURL,
		MaxBatches:    cfg.Extraction.MaxBatches,
		BatchSize:     cfg.Extraction.MaxItemsPerBatch,
		Sinks:         st.names,
		Cache:         cfg.Cache.Backend,
		RatePerMin:    cfg.Server.RatePerMin,
		Burst:         cfg.Server.Burst,
		ShareTTL:      "never expire",
		Port:          cfg.Server.Port,
	}
	for _, v := range cfg.Variants {
		info.Variants = append(info.Variants, v.Label)
	}
	if st.vectors != nil {
		info.DishCount = st.vectors.Count()
	}
	if st.graph != nil {
		info.TripleCount = st.graph.Count()
	}
	if cfg.Share.TTL > 0 {
		info.ShareTTL = "expire after " + cfg.Share.TTL.String()
	}
	for _, r := range server.Routes() {
		info.Endpoints = append(info.Endpoints, display.Endpoint{Method: r[0], Path: r[1]})
	}
	return info
}
