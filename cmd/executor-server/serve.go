package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	executor "github.com/avb-is-me/codespace-executor"
	"github.com/avb-is-me/codespace-executor/config"
	"github.com/avb-is-me/codespace-executor/internal/logging"
	"github.com/avb-is-me/codespace-executor/internal/redisclient"
	"github.com/avb-is-me/codespace-executor/orchestrator"
	"github.com/avb-is-me/codespace-executor/policy"
	"github.com/avb-is-me/codespace-executor/sandbox"
)

func serveCmd() *cobra.Command {
	var logLevel string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the executor HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgFile, logLevel, pretty)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "use a human-readable console log writer instead of JSON")
	return cmd
}

func runServe(configPath, logLevel string, pretty bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(os.Stderr, logLevel, pretty)
	for _, warning := range cfg.Validate() {
		logger.Warn(warning)
	}

	// No concrete container SDK client is wired here: sandbox.ContainerRunner
	// is deliberately left to the embedder, matching the narrow-interface
	// boundary the isolation backend is built on (see DESIGN.md). Isolated
	// modes report BackendUnavailable until this binary is composed with a
	// real client; "direct" mode works out of the box.
	containerRunner := sandbox.NewContainerRunnerAdapter(sandbox.ContainerConfig{
		Image:    cfg.Sandbox.Image,
		WorkRoot: cfg.Sandbox.WorkRoot,
		Logger:   logger,
	})
	directRunner := sandbox.NewDirectRunner(sandbox.DirectConfig{
		WorkRoot: cfg.Sandbox.WorkRoot,
		Logger:   logger,
	})

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if reclaimed, err := sandbox.Sweep(cfg.Sandbox.WorkRoot, logger); err != nil {
		logger.Warn("sandbox sweep failed", "error", err.Error())
	} else if reclaimed > 0 {
		logger.Info("reclaimed orphaned sandbox directories", "count", reclaimed)
	}
	if cfg.Sandbox.ExecutionMode != executor.ModeDirect && cfg.Sandbox.Image != "" {
		if err := containerRunner.ProbeImage(startupCtx); err != nil {
			if errors.Is(err, sandbox.ErrImageNotHardened) {
				startupCancel()
				return fmt.Errorf("startup image hardening probe failed for image %s: %w", cfg.Sandbox.Image, err)
			}
			logger.Error("startup image hardening probe failed", "image", cfg.Sandbox.Image, "error", err.Error())
		}
	}
	startupCancel()

	var policyFetcher *policy.Fetcher
	if cfg.Policy.Enabled && cfg.Policy.ServiceURL != "" {
		cache := policy.Cache(policy.NewMemCache())
		if cfg.Policy.RedisAddr != "" {
			cache = policy.NewRedisCache(redisclient.New(cfg.Policy.RedisAddr), "")
		}
		policyFetcher = policy.NewFetcher(policy.FetcherConfig{
			BaseURL: cfg.Policy.ServiceURL,
			Cache:   cache,
			TTL:     cfg.CacheTTL(),
			Logger:  logger,
		})
	}

	orch := orchestrator.New(orchestrator.Config{
		Runners: map[executor.ExecutionMode]sandbox.Runner{
			executor.ModeDirect:                  directRunner,
			executor.ModeIsolated:                 containerRunner,
			executor.ModeIsolatedProxied:          containerRunner,
			executor.ModeIsolatedProxiedPolicied:  containerRunner,
		},
		PolicyFetcher: policyFetcherOrNil(policyFetcher),
		ProxyPort:     cfg.Proxy.Port,
		Logger:        logger,
	})

	var policyResolver func(ctx context.Context, token string) executor.PolicyInfo
	if policyFetcher != nil {
		policyResolver = func(ctx context.Context, token string) executor.PolicyInfo {
			res := policyFetcher.FetchPolicy(ctx, token)
			info := executor.PolicyInfo{Token: token, Source: "default"}
			if res.Success {
				info.Source = "caller"
			}
			return info
		}
	}

	runtime := executor.NewDefaultRuntime(executor.RuntimeConfig{
		Mode:           cfg.Sandbox.ExecutionMode,
		Orchestrator:   orch,
		PolicyResolver: policyResolver,
		Logger:         logger,
	})

	srv := newHTTPServer(cfg, runtime, logger)

	go func() {
		logger.Info("executor-server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// policyFetcherOrNil avoids handing orchestrator.New a typed-nil interface
// value, which a plain `(*policy.Fetcher)(nil)` assignment would produce.
func policyFetcherOrNil(f *policy.Fetcher) orchestrator.PolicyFetcher {
	if f == nil {
		return nil
	}
	return f
}

func newHTTPServer(cfg *config.Config, runtime *executor.DefaultRuntime, logger logging.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Post("/v1/execute", executeHandler(runtime, logger))

	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: r,
	}
}

// executeRequestBody is the manual-testing wire shape for POST /v1/execute.
type executeRequestBody struct {
	Payload       string               `json:"payload"`
	Phase1Fetches []executor.FetchSpec `json:"phase1Fetches"`
	HeaderEnv     map[string]string    `json:"headerEnv"`
	CallerToken   string               `json:"callerToken"`
	TimeoutMs     int64                `json:"timeoutMs"`
}

func executeHandler(runtime *executor.DefaultRuntime, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body executeRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		req := executor.ExecutionRequest{
			Payload:       body.Payload,
			Phase1Fetches: body.Phase1Fetches,
			HeaderEnv:     body.HeaderEnv,
			CallerToken:   body.CallerToken,
			TimeoutMs:     body.TimeoutMs,
		}

		result, err := runtime.Execute(r.Context(), req)
		if err != nil {
			logger.Error("execute transport error", "error", err.Error())
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !result.Success {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}
		_ = json.NewEncoder(w).Encode(result)
	}
}
