package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vaani-tts/vaani/internal/api"
	"github.com/vaani-tts/vaani/internal/chat"
	"github.com/vaani-tts/vaani/internal/config"
	"github.com/vaani-tts/vaani/internal/history"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the vaani daemon (HTTP API + MCP, foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpEnabled, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpEnabled)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func runServer(mcpEnabled bool) error {
	fmt.Fprintf(os.Stderr, "vaani version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := history.Open()
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing history store", "error", err)
		}
	}()

	conv, aiClient := buildConverter(cfg, 0)
	session := chat.NewSession(aiClient)
	if !aiClient.HasKey() {
		printWarning("no OpenRouter API key configured; chat and AI pre-processing will fail")
	}

	deps := api.Deps{
		Converter: conv,
		Session:   session,
		History:   store,
		Token:     cfg.Server.Token,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("vaani listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if mcpEnabled {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Converter: conv,
			Session:   session,
			History:   store,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vaani system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		client := &http.Client{Timeout: 2 * time.Second}

		// Daemon health.
		resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
		if err != nil {
			printStatus("Daemon", "stopped")
		} else {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				printStatus("Daemon", "running on port %d", cfg.Server.Port)
			} else {
				printStatus("Daemon", "error (HTTP %d)", resp.StatusCode)
			}
		}

		// Conversion backend reachability.
		backendResp, err := client.Get(cfg.Backend.BaseURL + "/")
		if err != nil {
			printStatus("Backend", "unreachable at %s", cfg.Backend.BaseURL)
		} else {
			backendResp.Body.Close()
			printStatus("Backend", "reachable at %s", cfg.Backend.BaseURL)
		}

		printStatus("Sync backend", "%s", cfg.Backend.SyncURL)
		printStatus("Model", "%s", cfg.OpenRouter.Model)
		if cfg.OpenRouter.APIKey != "" {
			printStatus("API key", "set")
		} else {
			printStatus("API key", "not set")
		}
		return nil
	},
}
