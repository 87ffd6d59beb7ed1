package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Nit2312/NyaySarthi/internal/analysis"
	"github.com/Nit2312/NyaySarthi/internal/api"
	"github.com/Nit2312/NyaySarthi/internal/backend"
	"github.com/Nit2312/NyaySarthi/internal/chat"
	"github.com/Nit2312/NyaySarthi/internal/composer"
	"github.com/Nit2312/NyaySarthi/internal/config"
	"github.com/Nit2312/NyaySarthi/internal/jobs"
	"github.com/Nit2312/NyaySarthi/internal/logging"
	"github.com/Nit2312/NyaySarthi/internal/metrics"
	"github.com/Nit2312/NyaySarthi/internal/navigation"
	"github.com/Nit2312/NyaySarthi/internal/precedent"
	"github.com/Nit2312/NyaySarthi/internal/storage"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the nyay server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpStdio, _ := cmd.Flags().GetBool("mcp-stdio")
		return runServer(mcpStdio)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running nyay server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show nyay system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp-stdio", false, "also serve MCP tools over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "nyay.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(mcpStdio bool) error {
	fmt.Fprintf(os.Stderr, "nyay version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer closeLog()

	secrets := config.OpenSecrets(cfg.SecretsPath())
	apiToken, err := secrets.APIToken()
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	logger.Info("API bearer token available", zap.String("secrets", cfg.SecretsPath()))

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("nyay is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("nyay is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", zap.Error(err))
		}
	}()
	logger.Info("storage ready", zap.String("dir", cfg.Storage.DataDir), zap.Int("schema_version", store.SchemaVersion()))

	client := backend.New(backend.Options{
		BaseURL:      cfg.Backend.BaseURL,
		Timeout:      cfg.Backend.Timeout,
		RateLimit:    cfg.Backend.RateLimit,
		Burst:        cfg.Backend.Burst,
		AnalysisType: cfg.Jobs.AnalysisType,
		Tokens:       secrets,
		Logger:       logger,
	})
	if !client.LoggedIn() {
		logger.Warn("no backend token; run `nyay login` before searching or chatting")
	}

	repo, err := precedent.New(client, precedent.Options{
		CacheTTL:     cfg.Precedent.CacheTTL,
		DefaultLimit: cfg.Precedent.DefaultLimit,
		Favorites:    store,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	manager := chat.NewManager(store, client, chat.Options{
		Timeout:  cfg.Chat.Timeout,
		Composer: composer.New(cfg.Chat.MaxContextTokens, cfg.Chat.HistoryWindow),
		Logger:   logger,
		Observer: m,
	})

	var analyzer jobs.Analyzer = client
	if cfg.Jobs.AnalysisMode == "local" {
		analyzer = analysis.New(logger)
	}
	pipeline := jobs.NewPipeline(analyzer, jobs.Options{
		MaxFileSize:       int64(cfg.Jobs.MaxFileSize),
		AcceptedTypes:     cfg.Jobs.AcceptedTypes,
		TransitionTimeout: cfg.Jobs.TransitionTimeout,
		AnalysisType:      cfg.Jobs.AnalysisType,
		Logger:            logger,
	})
	m.RegisterPipeline(pipeline)

	deps := api.Deps{
		Chat:       manager,
		Navigator:  navigation.New(repo, manager),
		Precedents: repo,
		Pipeline:   pipeline,
		History:    store,
		Metrics:    m,
		Token:      apiToken,
		Logger:     logger,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	worker := jobs.NewWorker(pipeline, cfg.Jobs.Concurrency, 0, logger)
	g.Go(func() error { return worker.Run(gctx) })

	watched := m.WatchPipeline(gctx, pipeline)

	if mcpStdio {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", zap.Error(err))
			}
			return nil
		})
		logger.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		logger.Info("nyay listening", zap.String("addr", addr), zap.String("backend", client.BaseURL()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		return manager.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	<-watched
	return err
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("nyay is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop nyay (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to nyay (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	secrets := config.OpenSecrets(cfg.SecretsPath())
	remote := backend.New(backend.Options{BaseURL: cfg.Backend.BaseURL, Timeout: 2 * time.Second, Tokens: secrets})
	if health, err := remote.Health(ctx); err != nil {
		printStatus("Backend", "unreachable at %s", cfg.Backend.BaseURL)
	} else {
		printStatus("Backend", "%s at %s", health, cfg.Backend.BaseURL)
	}
	if remote.LoggedIn() {
		printStatus("Login", "token stored")
	} else {
		printStatus("Login", "not logged in")
	}
	printStatus("Analysis", "%s (%s)", cfg.Jobs.AnalysisMode, cfg.Jobs.AnalysisType)

	if running {
		local, err := newAPIClient()
		if err == nil {
			var stats jobs.Stats
			if resp, err := local.get(ctx, "/jobs/stats"); err == nil && decodeJSON(resp, &stats) == nil {
				printStatus("Jobs", "%d total, %d completed, %d failed, %d in flight", stats.Total, stats.Completed, stats.Failed, stats.InFlight)
			}
			var sessions []chat.Session
			if resp, err := local.get(ctx, "/sessions"); err == nil && decodeJSON(resp, &sessions) == nil {
				printStatus("Sessions", "%s open", countLabel(len(sessions), 100))
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
