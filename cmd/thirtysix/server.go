package main

import (
	"context"
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

	"github.com/closerlab/thirtysix/internal/agent"
	"github.com/closerlab/thirtysix/internal/answers"
	"github.com/closerlab/thirtysix/internal/auth"
	"github.com/closerlab/thirtysix/internal/catalog"
	"github.com/closerlab/thirtysix/internal/config"
	"github.com/closerlab/thirtysix/internal/mcptools"
	"github.com/closerlab/thirtysix/internal/progress"
	"github.com/closerlab/thirtysix/internal/prompts"
	"github.com/closerlab/thirtysix/internal/storage"
	"github.com/closerlab/thirtysix/internal/web"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the thirtysix server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running thirtysix server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show thirtysix system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "thirtysix.pid")
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

func logLevelFromConfig(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "thirtysix version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevelFromConfig(cfg.Log.Level),
	})))

	// Refuse to start twice. The health probe catches a live server even
	// when a stale PID file is lying around.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("thirtysix is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("thirtysix is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load the immutable question catalog.
	cat, err := catalog.Load(cfg.Storage.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading question catalog: %w", err)
	}
	slog.Info("question catalog loaded", "questions", cat.Len(), "path", cfg.Storage.CatalogPath)

	// Prompts are only required when the agent narrates the session.
	lib, err := prompts.Load(cfg.Storage.PromptsPath)
	if err != nil {
		if cfg.Agent.Provider != "" {
			return fmt.Errorf("loading prompts: %w", err)
		}
		slog.Warn("prompts unavailable, continuing without them", "path", cfg.Storage.PromptsPath, "error", err)
		lib = nil
	}

	// Open answer storage.
	answerStore, err := answers.Open(filepath.Join(cfg.Storage.DataDir, "answers"))
	if err != nil {
		return fmt.Errorf("opening answer store: %w", err)
	}
	tracker := progress.New(cat, answerStore)

	// Open the interaction log.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening interaction log: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing interaction log: %v\n", err)
		}
	}()

	// Token verification: static identity for local development, Firebase
	// ID tokens otherwise.
	var verifier auth.Verifier
	if cfg.Auth.DevToken != "" {
		verifier = auth.StaticVerifier{cfg.Auth.DevToken: {UserID: cfg.Auth.DevUserID}}
		slog.Warn("using static development verifier", "user", cfg.Auth.DevUserID)
	} else {
		verifier = auth.NewTokenVerifier(cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.CertsURL, nil)
		slog.Info("verifying Firebase ID tokens", "audience", cfg.Auth.Audience)
	}

	// Hosted-model agent; nil provider means template rendering only.
	provider, err := agent.NewProvider(ctx, agent.Config{
		Provider: cfg.Agent.Provider,
		Gemini:   agent.GeminiConfig{APIKey: cfg.Agent.GeminiAPIKey, Model: cfg.Agent.GeminiModel},
		OpenAI:   agent.OpenAIConfig{APIKey: cfg.Agent.OpenAIAPIKey, Model: cfg.Agent.OpenAIModel, BaseURL: cfg.Agent.OpenAIBaseURL},
	})
	if err != nil {
		return fmt.Errorf("configuring agent: %w", err)
	}
	var guide *agent.Guide
	if provider != nil && lib != nil {
		guide = agent.NewGuide(provider, tracker, lib)
		slog.Info("agent enabled", "provider", cfg.Agent.Provider, "model", provider.ModelID())
	}

	handler := web.NewHandler(web.Deps{
		Catalog:  cat,
		Store:    answerStore,
		Tracker:  tracker,
		Prompts:  lib,
		Verifier: verifier,
		Guide:    guide,
		Log:      store,
		Logger:   slog.Default(),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server on stdio, so conversational clients can drive a session.
	mcpSrv := mcptools.NewServer(mcptools.Deps{
		Catalog: cat,
		Store:   answerStore,
		Tracker: tracker,
		Prompts: lib,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "thirtysix listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
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
		printError("thirtysix is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop thirtysix (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to thirtysix (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cat, err := catalog.Load(cfg.Storage.CatalogPath); err != nil {
		printStatus("Catalog", "unavailable (%v)", err)
	} else {
		printStatus("Catalog", "%d questions", cat.Len())
	}

	if cfg.Auth.DevToken != "" {
		printStatus("Auth", "static development identity (%s)", cfg.Auth.DevUserID)
	} else {
		printStatus("Auth", "Firebase ID tokens (audience %s)", cfg.Auth.Audience)
	}

	if cfg.Agent.Provider == "" {
		printStatus("Agent", "disabled (template rendering)")
	} else {
		printStatus("Agent", "%s", cfg.Agent.Provider)
	}

	answerStore, err := answers.Open(filepath.Join(cfg.Storage.DataDir, "answers"))
	if err == nil {
		if users, err := answerStore.Users(); err == nil {
			printStatus("Users", "%d with stored answers", len(users))
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
