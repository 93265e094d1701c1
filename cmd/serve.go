package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codetutor/codetutor/internal/chat"
	"github.com/codetutor/codetutor/internal/classify"
	"github.com/codetutor/codetutor/internal/config"
	"github.com/codetutor/codetutor/internal/embedding"
	"github.com/codetutor/codetutor/internal/llm"
	"github.com/codetutor/codetutor/internal/pedagogy"
	"github.com/codetutor/codetutor/internal/prompt"
	"github.com/codetutor/codetutor/internal/store"
	"github.com/codetutor/codetutor/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tutor HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if len(cfg.AuthEntries) == 0 {
		return fmt.Errorf("no users configured: set CODETUTOR_AUTH (token=id:name:prog:maths, comma separated)")
	}
	auth, err := transport.NewTokenAuthenticator(cfg.AuthEntries)
	if err != nil {
		return err
	}

	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := llm.NewGateway(ctx, cfg.LLM, logger, st.LLMEvents())
	if err != nil {
		return fmt.Errorf("build LLM gateway: %w", err)
	}

	embChain, err := embedding.NewChainFromConfig(ctx, cfg.Embedding, logger)
	if err != nil {
		return fmt.Errorf("build embedding chain: %w", err)
	}

	anchors, err := loadAnchors(cfg.AnchorsPath, logger)
	if err != nil {
		return err
	}

	classifier := classify.New(embChain, anchors, logger)
	engine := pedagogy.NewEngine(classifier, embChain, pedagogy.FingerprintQAPair, logger)
	compressor := prompt.NewCompressor(gateway, prompt.DefaultCompressorConfig())
	builder := prompt.NewBuilder(gateway.CountTokens, compressor, cfg.Prompt, logger)
	svc := chat.NewService(st, engine, builder, gateway, cfg.Chat, logger)

	srv := transport.NewServer(svc, st, auth, cfg.Server, logger)
	return srv.Run(ctx)
}

// loadAnchors reads the precomputed anchor file. Without one the
// classifier runs with empty sets: every turn goes to the LLM, which
// works but filters nothing, so it warns loudly.
func loadAnchors(path string, logger *slog.Logger) (*classify.Anchors, error) {
	if path == "" {
		logger.Warn("no anchor file configured, topic filters disabled (run 'codetutor anchors' and set CODETUTOR_ANCHORS)")
		return &classify.Anchors{
			Version:    1,
			Thresholds: classify.DefaultThresholds(),
			Sets:       map[string][]classify.AnchorPhrase{},
		}, nil
	}
	a, err := classify.LoadAnchors(path)
	if err != nil {
		return nil, fmt.Errorf("load anchors: %w", err)
	}
	logger.Info("anchors loaded", "path", path, "version", a.Version)
	return a, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
