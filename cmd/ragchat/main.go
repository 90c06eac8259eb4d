// Package main implements ragchat, a terminal chat over a folder of text files.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ragchat/internal/chat"
	"ragchat/internal/config"
	"ragchat/internal/logging"
	"ragchat/internal/service"
	"ragchat/internal/tui"
)

var (
	cfgPath string
	rebuild bool
	uiMode  string
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stdout, "An error occurred: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "ragchat",
		Short: "Chat with an LLM over a folder of text files",
		Long: `ragchat indexes every .txt file of the source directory into a persistent
vector store (once) and answers questions about them, rewriting follow-ups
with the conversation history before retrieval.

Examples:
  # Start chatting (builds the store on first run)
  ragchat

  # Use the terminal UI and a specific config
  ragchat --ui tui --config ./config.yaml`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), in, out)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (defaults to ./config.yaml, then ~/.config/ragchat/config.yaml)")
	root.PersistentFlags().BoolVar(&rebuild, "rebuild", false, "Drop and rebuild the vector store from the source directory")
	root.PersistentFlags().StringVar(&uiMode, "ui", "", "Chat front end: console or tui (overrides chat.ui)")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), in, out)
		},
	}

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Build the vector store without chatting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), out)
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Print the passages retrieved for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), out, strings.Join(args, " "))
		},
	}

	root.AddCommand(chatCmd, indexCmd, searchCmd)
	return root
}

// setup loads configuration and the logger, then assembles and ingests.
func setup(ctx context.Context, out io.Writer) (*config.AppConfig, *service.RAGService, *zap.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	svc, closer, err := assemble(cfg, out, logger)
	if err != nil {
		_ = logging.Sync(logger)
		return nil, nil, nil, nil, err
	}
	cleanup := func() {
		closer()
		_ = logging.Sync(logger)
	}
	if _, err := svc.Ingest(ctx, rebuild); err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}
	return cfg, svc, logger, cleanup, nil
}

func loadConfig() (*config.AppConfig, error) {
	if cfgPath != "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, _, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, svc, logger, cleanup, err := setup(ctx, out)
	if err != nil {
		return err
	}
	defer cleanup()

	ui := cfg.Chat.UI
	if uiMode != "" {
		ui = uiMode
	}
	session := chat.NewSession()
	switch ui {
	case "console":
		return chat.NewLoop(svc, session, in, out, cfg.TurnTimeout(), logger).Run(ctx)
	case "tui":
		m := tui.New(ctx, svc, session, cfg.TurnTimeout())
		_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		return err
	default:
		return fmt.Errorf("unknown chat ui: %s", ui)
	}
}

func runIndex(ctx context.Context, out io.Writer) error {
	_, _, _, cleanup, err := setup(ctx, out)
	if err != nil {
		return err
	}
	cleanup()
	return nil
}

func runSearch(ctx context.Context, out io.Writer, query string) error {
	_, svc, _, cleanup, err := setup(ctx, out)
	if err != nil {
		return err
	}
	defer cleanup()
	if r := svc.Search(ctx, query); !r.OK() {
		return r.Err
	}
	return nil
}
