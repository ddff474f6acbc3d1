package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-debate/backend/internal/catalog"
	"github.com/zhouzirui/z-debate/backend/internal/config"
	"github.com/zhouzirui/z-debate/backend/internal/handler"
	"github.com/zhouzirui/z-debate/backend/internal/logging"
	"github.com/zhouzirui/z-debate/backend/internal/service/ai"
	"github.com/zhouzirui/z-debate/backend/internal/service/debate"
	topicservice "github.com/zhouzirui/z-debate/backend/internal/service/topic"
)

// Version is set at build time.
var Version = "dev"

const defaultEnvFile = ".env"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "debated",
		Short:         "Live persona debate server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file loaded before reading the environment")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return loadEnvFile(envFile)
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and websocket server (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "catalog",
			Short: "Print the speaker and topic catalogs",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printCatalog(cmd.OutOrStdout())
			},
		},
	)

	return root
}

// loadEnvFile 加载 dotenv 文件。默认文件不存在时只使用系统环境变量。
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if path == defaultEnvFile && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.New(cfg.Log, os.Stderr)

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	speakers, topics := cat.Stores()
	logger.Info("catalog loaded", "speakers", len(cat.Speakers), "topics", len(cat.Topics))

	aiService, err := ai.NewService(ctx, cfg.AI, logger)
	if err != nil {
		return fmt.Errorf("initialize %s completion client: %w", cfg.AI.Provider, err)
	}
	logger.Info("completion client initialized", "provider", cfg.AI.Provider, "model", cfg.AI.ModelName())

	topicService, err := topicservice.NewService(ctx, aiService.ChatModel(), topics, logger)
	if err != nil {
		return fmt.Errorf("initialize topic generator: %w", err)
	}

	orchestrator := debate.NewOrchestrator(aiService, speakers, topics, cfg.Debate, logger)

	router := handler.NewRouter(handler.Dependencies{
		Speakers:       speakers,
		Topics:         topics,
		Debates:        orchestrator,
		TopicGenerator: topicService,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("debate backend listening", "addr", cfg.Server.Addr)
	return runServer(ctx, srv, logger)
}

func runServer(ctx context.Context, srv *http.Server, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func printCatalog(w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	fmt.Fprintln(w, "Speakers:")
	for _, sp := range cat.Speakers {
		fmt.Fprintf(w, "  %-18s temperature=%.1f  %s\n", sp.Name, sp.SamplingTemperature(), sp.Style)
	}
	fmt.Fprintln(w, "Topics:")
	for _, t := range cat.Topics {
		fmt.Fprintf(w, "  %s\n", t)
	}
	return nil
}
