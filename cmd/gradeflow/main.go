package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gradeflow/gradeflow/internal/answersheet"
	"github.com/gradeflow/gradeflow/internal/engine"
	"github.com/gradeflow/gradeflow/internal/handler"
	"github.com/gradeflow/gradeflow/internal/llm"
	"github.com/gradeflow/gradeflow/internal/markscheme"
	"github.com/gradeflow/gradeflow/internal/notify"
	"github.com/gradeflow/gradeflow/internal/pdf"
	"github.com/gradeflow/gradeflow/internal/pipeline"
	"github.com/gradeflow/gradeflow/internal/storage"
	"github.com/gradeflow/gradeflow/internal/store"
	"github.com/gradeflow/gradeflow/internal/task"
	"github.com/gradeflow/gradeflow/internal/worker"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gradeflow",
		Short: "LLM-assisted grading of PDF answer sheets",
	}

	serve := serveCmd()
	root.AddCommand(serve, markSchemeCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `gradeflow --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the grading API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "gradeflow.db", "SQLite database path")
	f.String("data-dir", "./data", "Directory for uploaded files")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty for the default)")
	f.String("llm-key", "", "API key for LLM")
	f.String("llm-model", "gpt-4o", "LLM model for evaluation")
	f.String("vision-model", "", "Multimodal model for handwriting (defaults to llm-model)")
	f.String("email-domain", "", "Restrict extracted student emails to this domain")
	f.Int("batch-size", engine.DefaultBatchSize, "Answer sheets per evaluation request")
	f.Int("workers", worker.DefaultWidth, "Background worker pool size")
	f.Int("render-dpi", pdf.DefaultRenderDPI, "DPI for handwritten page rendering")
	f.Int("task-max-age-hours", 24, "Age after which finished tasks are deleted")
	f.String("smtp-host", "", "SMTP host (empty logs notifications instead)")
	f.Int("smtp-port", 587, "SMTP port (587 for STARTTLS, 465 for SSL)")
	f.String("smtp-username", "", "SMTP username")
	f.String("smtp-password", "", "SMTP password")
	f.String("smtp-from", "noreply@gradeflow.local", "Notification sender address")
	f.Bool("smtp-ssl", false, "Use implicit SSL instead of STARTTLS")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func markSchemeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markscheme <pdf>",
		Short: "Parse a mark scheme PDF and print the normalized JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runMarkScheme,
	}
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("GRADEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gradeflow")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/gradeflow")
	v.AddConfigPath("/etc/gradeflow")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	blobs, err := storage.NewFSStore(v.GetString("data-dir"))
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	llmClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		v.GetString("vision-model"),
	)
	if err := llmClient.Ping(context.Background()); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "model", v.GetString("llm-model"))

	tasks := task.NewManager()
	pool := worker.NewPool(v.GetInt("workers"))
	notifier := notify.New(notify.SMTPConfig{
		Host:     v.GetString("smtp-host"),
		Port:     v.GetInt("smtp-port"),
		Username: v.GetString("smtp-username"),
		Password: v.GetString("smtp-password"),
		From:     v.GetString("smtp-from"),
		SSL:      v.GetBool("smtp-ssl"),
	}, db)

	pipe := &pipeline.Pipeline{
		Store:      db,
		Blobs:      blobs,
		Assistants: llmClient,
		Typed: &answersheet.TypedParser{
			Uploader:    blobs,
			EmailDomain: v.GetString("email-domain"),
		},
		Handwritten: &answersheet.HandwrittenParser{
			Model:    llmClient,
			Renderer: &pdf.Renderer{DPI: float64(v.GetInt("render-dpi"))},
		},
		Engine:    engine.New(llmClient),
		Tasks:     tasks,
		Notifier:  notifier,
		Pool:      pool,
		BatchSize: v.GetInt("batch-size"),
	}

	maxAge := time.Duration(v.GetInt("task-max-age-hours")) * time.Hour
	go func() {
		for range time.Tick(time.Hour) {
			tasks.Cleanup(maxAge)
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: v.GetStringSlice("cors-origins"),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	handler.New(db, blobs, pipe, tasks).Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"workers", v.GetInt("workers"),
		"batch_size", v.GetInt("batch-size"),
	)
	return http.ListenAndServe(addr, r)
}

func runMarkScheme(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	scheme, err := markscheme.ExtractFile(args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(scheme, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
