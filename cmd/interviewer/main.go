package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pavelanni/interviewer/internal/handler"
	appI18n "github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/metrics"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/notify"
	"github.com/pavelanni/interviewer/internal/questions"
	"github.com/pavelanni/interviewer/internal/report"
	"github.com/pavelanni/interviewer/internal/scoring"
	"github.com/pavelanni/interviewer/internal/session"
	"github.com/pavelanni/interviewer/internal/store"
)

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "interviewer",
		Short:        "Timed technical interview simulator",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), reportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `interviewer --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStorageFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "interviewer.db", "SQLite database path")
	f.String("redis-addr", "", "Keep session state in Redis at this address instead of SQLite")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.String("redis-prefix", "interviewer", "Redis key prefix")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write logs to this file, rotated by size")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP interview server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("questions", "q", "", "Questions JSON file (default: built-in full-stack bank)")
	f.StringP("lang", "l", "en", "Default UI language (en, ru)")
	f.String("resume-policy", string(interview.ResumeRestart), "Timer on resume: restart or preserve")
	f.Duration("tick", time.Second, "Question timer tick interval (0 disables the timer)")
	f.Duration("score-timeout", 10*time.Second, "Maximum time to score one answer")
	f.String("scorer", "heuristic", "Answer scorer (heuristic, llm)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.Standard), "Grading prompt variant (strict, standard, lenient)")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.String("smtp-host", "", "SMTP server for completion emails (empty logs them instead)")
	f.Int("smtp-port", 587, "SMTP port")
	f.String("smtp-user", "", "SMTP username")
	f.String("smtp-password", "", "SMTP password")
	f.String("smtp-from", "", "Sender address for completion emails")
	addStorageFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export interview results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.StringP("questions", "q", "", "Questions JSON file used for the interviews")
	f.Bool("completed-only", false, "Only include completed interviews")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addStorageFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a candidate's PDF report",
		RunE:  runReport,
	}
	f := cmd.Flags()
	f.String("candidate", "", "Candidate id (required)")
	f.StringP("output", "o", "", "Output file path (default: <candidate>.pdf)")
	addStorageFlags(cmd)
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("candidate")

	return cmd
}

func setupLogging(v *viper.Viper) {
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

	var out io.Writer = os.Stderr
	if path := v.GetString("log-file"); path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("INTERVIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("interviewer")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/interviewer")
	v.AddConfigPath("/etc/interviewer")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// backend is the opened storage: the SQLite store always, and the session
// key-value store, which is either the same database or Redis.
type backend struct {
	db    *store.Store
	kv    session.KV
	redis *store.RedisKV
}

func openBackend(ctx context.Context, v *viper.Viper) (*backend, error) {
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	b := &backend{db: db, kv: db}

	if addr := v.GetString("redis-addr"); addr != "" {
		rkv, err := store.NewRedisKV(ctx, addr, v.GetString("redis-password"), v.GetInt("redis-db"), v.GetString("redis-prefix"))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.kv = rkv
		b.redis = rkv
		slog.Info("session state in redis", "addr", addr)
	}
	return b, nil
}

func (b *backend) Close() error {
	var errs []error
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	errs = append(errs, b.db.Close())
	return errors.Join(errs...)
}

func loadBank(path string) (*questions.Bank, error) {
	if path == "" {
		return questions.Default(), nil
	}
	bank, err := questions.Load(path)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded questions", "path", path, "count", bank.Size())
	return bank, nil
}

func buildNotifier(v *viper.Viper, db *store.Store) (notify.Notifier, error) {
	var next notify.Notifier = notify.Log{Logger: slog.Default()}
	if host := v.GetString("smtp-host"); host != "" {
		smtp, err := notify.NewSMTP(notify.SMTPConfig{
			Host:     host,
			Port:     v.GetInt("smtp-port"),
			Username: v.GetString("smtp-user"),
			Password: v.GetString("smtp-password"),
			From:     v.GetString("smtp-from"),
		})
		if err != nil {
			return nil, err
		}
		next = smtp
	}
	return notify.Recorder{Next: next, Store: db}, nil
}

func buildScorer(ctx context.Context, v *viper.Viper) (scoring.Scorer, error) {
	switch kind := strings.ToLower(v.GetString("scorer")); kind {
	case "", "heuristic":
		return scoring.Heuristic{}, nil
	case "llm":
		variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
		if !prompts.IsValidVariant(variant) {
			slog.Warn("invalid prompt-variant, using standard", "variant", variant)
			variant = string(prompts.Standard)
		}
		s, err := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), prompts.Variant(variant))
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			return nil, fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"), "variant", variant)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown scorer %q (want heuristic or llm)", kind)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := interview.ParseResumePolicy(v.GetString("resume-policy"))
	if err != nil {
		return err
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	bank, err := loadBank(v.GetString("questions"))
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	scorer, err := buildScorer(ctx, v)
	if err != nil {
		return err
	}

	be, err := openBackend(ctx, v)
	if err != nil {
		return err
	}
	defer be.Close()

	notifier, err := buildNotifier(v, be.db)
	if err != nil {
		return fmt.Errorf("configure notifications: %w", err)
	}

	svc, err := session.Open(ctx, be.kv, interview.New(bank), scorer, notifier, session.Options{
		ResumePolicy: policy,
		TickInterval: v.GetDuration("tick"),
		ScoreTimeout: v.GetDuration("score-timeout"),
		Logger:       slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer svc.Close()

	if snap := svc.Snapshot(); snap.PendingResume {
		slog.Info("unfinished interview found", "candidate", snap.State.CurrentCandidate.ID)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: v.GetStringSlice("cors-origins"),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware)
	r.Use(appI18n.Middleware(lang))
	r.Handle("/metrics", metrics.Handler())
	handler.New(svc, slog.Default()).Routes(r)

	addr := v.GetString("addr")
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server",
			"addr", addr,
			"lang", lang,
			"questions", bank.Size(),
			"resume_policy", policy,
			"scorer", v.GetString("scorer"),
			"redis", be.redis != nil,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	bank, err := loadBank(v.GetString("questions"))
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	be, err := openBackend(ctx, v)
	if err != nil {
		return err
	}
	defer be.Close()

	export, err := store.ExportRoster(ctx, be.kv, bank.Size(), v.GetBool("completed-only"))
	if err != nil {
		return fmt.Errorf("export roster: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	w, closeOut, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	slog.Info("exported results", "candidates", len(export.Results))
	return nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	be, err := openBackend(ctx, v)
	if err != nil {
		return err
	}
	defer be.Close()

	roster, err := store.LoadRoster(ctx, be.kv)
	if err != nil {
		return err
	}
	id := v.GetString("candidate")
	c, ok := findCandidate(roster, id)
	if !ok {
		return fmt.Errorf("candidate %q: %w", id, session.ErrNotFound)
	}

	out := v.GetString("output")
	if out == "" {
		out = c.ID + ".pdf"
	}
	w, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}
	defer closeOut()

	if err := report.Write(w, c); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	slog.Info("wrote report", "candidate", c.ID, "path", out)
	return nil
}

func findCandidate(roster []model.Candidate, id string) (model.Candidate, bool) {
	for _, c := range roster {
		if c.ID == id {
			return c, true
		}
	}
	return model.Candidate{}, false
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
