package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/hintd/internal/api"
	"github.com/kalambet/hintd/internal/config"
	"github.com/kalambet/hintd/internal/engine"
	"github.com/kalambet/hintd/internal/hint"
	"github.com/kalambet/hintd/internal/metrics"
	"github.com/kalambet/hintd/internal/pipeline"
	"github.com/kalambet/hintd/internal/retention"
	"github.com/kalambet/hintd/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the hintd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running hintd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hintd status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

// pidFile records the PID of the foreground server for "hintd stop".
type pidFile string

func pidFileFor(dataDir string) pidFile {
	return pidFile(filepath.Join(dataDir, "hintd.pid"))
}

func (p pidFile) write() error {
	if err := os.MkdirAll(filepath.Dir(string(p)), 0o755); err != nil {
		return err
	}
	return os.WriteFile(string(p), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func (p pidFile) read() (int, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func (p pidFile) remove() { os.Remove(string(p)) }

// parseLogLevel accepts slog level names plus "warning". Anything else is info.
func parseLogLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		s = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// buildSuggester wires the engine, the phrasebook and the formatter from cfg.
// store and observer may be nil.
func buildSuggester(cfg config.Config, store pipeline.SuggestionStore, observer metrics.Observer) (*pipeline.Suggester, error) {
	pb, err := hint.LoadPhrasebook(cfg.Hint.PhrasebookFile)
	if err != nil {
		return nil, fmt.Errorf("loading phrasebook: %w", err)
	}
	formatter, err := hint.New(pb)
	if err != nil {
		return nil, fmt.Errorf("building hint formatter: %w", err)
	}
	eng := engine.New(cfg.EngineConfig(pb.Labels()))
	s := pipeline.NewSuggester(eng, formatter, store, observer)
	s.LogRequests(cfg.Storage.LogRequests)
	return s, nil
}

// checkNotRunning fails when something already answers /health on the
// configured port.
func checkNotRunning(cfg config.Config, pf pidFile) error {
	probe := &http.Client{Timeout: 2 * time.Second}
	resp, err := probe.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		return nil
	}
	resp.Body.Close()
	if pid, err := pf.read(); err == nil {
		return fmt.Errorf("hintd already running (PID %d)", pid)
	}
	return fmt.Errorf("port %d is already serving /health", cfg.Server.Port)
}

// newRouter mounts the suggestion log under /v1/suggestions and the public
// hint routes everywhere else.
func newRouter(store *storage.Store, suggester *pipeline.Suggester, token string) http.Handler {
	r := chi.NewRouter()
	r.Mount("/v1/suggestions", api.NewAppHandler(api.AppDeps{
		Store:     store,
		Suggester: suggester,
		Token:     token,
	}))
	r.Mount("/", api.NewHintHandler(api.HintDeps{Suggester: suggester}))
	return r
}

// serveHTTP runs srv until ctx is done, then drains it for up to five seconds.
func serveHTTP(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))
	slog.Info("starting hintd", "version", version, "data_dir", cfg.Storage.DataDir)

	if cfg.Server.APIToken == "" {
		printWarning("no API token configured; /v1/suggestions is unauthenticated")
	}

	pf := pidFileFor(cfg.Storage.DataDir)
	if err := checkNotRunning(cfg, pf); err != nil {
		return err
	}
	if err := pf.write(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer pf.remove()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	observer, err := metrics.NewPrometheusObserver("hintd", nil)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	suggester, err := buildSuggester(cfg, store, observer)
	if err != nil {
		return err
	}

	go retention.NewWorker(store, cfg.Storage.RetentionDays, time.Hour).Run(ctx)

	mcpSrv := api.NewMCPServer(api.MCPDeps{Suggester: suggester, Store: store, Version: version})
	go func() {
		if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("mcp stdio server stopped", "error", err)
		}
	}()

	return serveHTTP(ctx, &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler:           newRouter(store, suggester, cfg.Server.APIToken),
		ReadHeaderTimeout: 10 * time.Second,
	})
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	pf := pidFileFor(cfg.Storage.DataDir)
	pid, err := pf.read()
	if err != nil {
		return fmt.Errorf("hintd is not running (no PID file): %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		pf.remove()
		return fmt.Errorf("signalling hintd (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to hintd (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := newAPIClientFor(cfg)
	client.httpClient.Timeout = 2 * time.Second
	reportStatus(ctx, client, cfg)
	return nil
}

func reportStatus(ctx context.Context, client *apiClient, cfg config.Config) {
	resp, err := client.get(ctx, "/health")
	running := false
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case resp.StatusCode == http.StatusOK:
		resp.Body.Close()
		running = true
		printStatus("Server", "running on port %d", cfg.Server.Port)
	default:
		resp.Body.Close()
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	}

	if running {
		if n, err := countSuggestions(ctx, client, 100); err == nil {
			printStatus("Suggestions", "%s", countLabel(n, 100))
		} else {
			printStatus("Suggestions", "unavailable (%v)", err)
		}
	}

	printStatus("Retention", "%d days", cfg.Storage.RetentionDays)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
}

func countSuggestions(ctx context.Context, client *apiClient, limit int) (int, error) {
	var items []json.RawMessage
	if err := client.call(ctx, http.MethodGet, fmt.Sprintf("/v1/suggestions?limit=%d", limit), nil, &items); err != nil {
		return 0, err
	}
	return len(items), nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
