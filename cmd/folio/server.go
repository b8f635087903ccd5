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

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/cngjsskaisme/folio/internal/api"
	"github.com/cngjsskaisme/folio/internal/composer"
	"github.com/cngjsskaisme/folio/internal/config"
	"github.com/cngjsskaisme/folio/internal/engine"
	"github.com/cngjsskaisme/folio/internal/ingest"
	"github.com/cngjsskaisme/folio/internal/pipeline"
	"github.com/cngjsskaisme/folio/internal/retrieval"
	"github.com/cngjsskaisme/folio/internal/storage"
	"github.com/cngjsskaisme/folio/internal/synth"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the folio server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running folio server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show folio system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "folio.pid")
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

func logLevel(name string) slog.Level {
	if strings.EqualFold(name, "debug") {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// openVectorStore returns the backend selected by store.backend. The SQLite
// backend shares the application database.
func openVectorStore(cfg config.Config, db *storage.Store) (retrieval.VectorStore, error) {
	switch cfg.Store.Backend {
	case config.BackendChromem:
		s, err := retrieval.NewChromemStore(filepath.Join(cfg.Storage.DataDir, "vectors"))
		if err != nil {
			return nil, fmt.Errorf("opening chromem store: %w", err)
		}
		return s, nil
	case config.BackendSQLite:
		return retrieval.NewSQLiteStore(db.DB()), nil
	default:
		return nil, &config.ConfigurationError{Key: "store.backend", Reason: fmt.Sprintf("unknown backend %q", cfg.Store.Backend)}
	}
}

// newAsker wires the question pipeline from cfg.
func newAsker(cfg config.Config, vectors retrieval.VectorStore, embed retrieval.EmbeddingFunc, recorder pipeline.Recorder) (*pipeline.Asker, error) {
	gen, err := engine.NewGenerator(cfg)
	if err != nil {
		return nil, err
	}

	persona, err := composer.LoadPersona(cfg.Answer.PersonaFile)
	if err != nil {
		return nil, err
	}

	exec := retrieval.NewExecutor(vectors, cfg.Store.Collection, embed)
	ctrl := pipeline.NewController(synth.New(gen), exec,
		pipeline.WithMaxAttempts(cfg.Retry.MaxAttempts),
		pipeline.WithPause(cfg.RetryPause()),
		pipeline.WithDefaultNResults(cfg.Retrieval.NResults),
	)
	comp := composer.New(gen, composer.WithPersona(persona), composer.WithLanguage(cfg.Answer.Language))
	return pipeline.NewAsker(ctrl, comp, recorder), nil
}

func runServer(withMCP bool) error {
	fmt.Fprintf(stderr, "folio version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))

	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to start twice: a healthy server already answers on the port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("folio is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("folio is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if models := engine.LocalModels(cfg); len(models) > 0 {
		if err := engine.EnsureReady(ctx, engine.NewOllamaEngine(cfg.Ollama.BaseURL), stderr, models...); err != nil {
			return err
		}
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(stderr, "warning: closing storage: %v\n", err)
		}
	}()

	embedder, err := engine.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	embed := retrieval.EmbeddingFuncFor(embedder)

	vectors, err := openVectorStore(cfg, store)
	if err != nil {
		return err
	}
	if err := vectors.GetOrCreateCollection(ctx, cfg.Store.Collection, embed); err != nil {
		return fmt.Errorf("opening collection %q: %w", cfg.Store.Collection, err)
	}
	if n, err := vectors.Count(ctx, cfg.Store.Collection); err == nil {
		slog.Info("vector store ready", "backend", cfg.Store.Backend, "collection", cfg.Store.Collection, "documents", n)
	}

	asker, err := newAsker(cfg, vectors, embed, store)
	if err != nil {
		return err
	}

	worker := ingest.NewWorker(store, vectors, cfg.Store.Collection, 500*time.Millisecond)
	go worker.Run(ctx)

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Asker: asker, Queue: store, Interactions: store})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewRouter(asker, api.AppDeps{
			Store:   store,
			Token:   apiToken,
			Vectors: vectors,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(stderr, "folio listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
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
		printError("folio is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop folio (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to folio (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		running = resp.StatusCode == http.StatusOK
		if running {
			printStatus("Server", "running on %s:%d", cfg.Server.Host, cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("LLM", "%s (%s)", cfg.LLM.Model, cfg.LLM.Provider)
	printStatus("Embeddings", "%s (%s)", cfg.Embed.Model, cfg.Embed.Provider)
	if len(engine.LocalModels(cfg)) > 0 {
		if engine.NewOllamaEngine(cfg.Ollama.BaseURL).IsRunning(ctx) {
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		} else {
			printStatus("Ollama", "not running")
		}
	}
	printStatus("Vector store", "%s, collection %q", cfg.Store.Backend, cfg.Store.Collection)
	printStatus("Retry", "%d attempts, %s pause", cfg.Retry.MaxAttempts, cfg.RetryPause())

	if running {
		if c, err := newAPIClient(); err == nil {
			if resp, err := c.get(ctx, api.ManagePrefix+"/jobs"); err == nil {
				var counts map[string]int
				if decodeJSON(resp, &counts) == nil {
					printStatus("Ingest jobs", "%s", jobSummary(counts))
				}
			}
			if resp, err := c.get(ctx, api.ManagePrefix+"/interactions?limit=100"); err == nil {
				var interactions []json.RawMessage
				if decodeJSON(resp, &interactions) == nil {
					printStatus("Interactions", "%s", countLabel(len(interactions), 100))
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func jobSummary(counts map[string]int) string {
	return fmt.Sprintf("%d pending, %d running, %d completed, %d failed",
		counts[storage.JobPending], counts[storage.JobRunning], counts[storage.JobCompleted], counts[storage.JobFailed])
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
