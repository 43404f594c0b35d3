package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/suPer8Hu/guruji-chat/internal/backend"
	"github.com/suPer8Hu/guruji-chat/internal/chat"
	"github.com/suPer8Hu/guruji-chat/internal/config"
	"github.com/suPer8Hu/guruji-chat/internal/logger"
	"github.com/suPer8Hu/guruji-chat/internal/prompts"
	"github.com/suPer8Hu/guruji-chat/internal/repl"
	"github.com/suPer8Hu/guruji-chat/internal/settings"
)

var (
	backendURL   string
	settingsPath string
)

// app is what every subcommand shares once flags are parsed.
type app struct {
	cfg      config.Config
	log      logger.Logger
	client   *backend.Client
	settings *settings.Store
}

func newApp() (*app, error) {
	cfg := config.Load()
	if backendURL != "" {
		cfg.Client.BackendURL = backendURL
	}
	if settingsPath != "" {
		cfg.Client.SettingsPath = settingsPath
	}

	st := settings.NewStore()
	if cfg.Client.SettingsPath != "" {
		if err := st.LoadFile(cfg.Client.SettingsPath); err != nil {
			return nil, err
		}
	}

	return &app{
		cfg:      cfg,
		log:      logger.New(cfg.App.LogFilePath, cfg.App.LogLevel, cfg.IsProduction(), true),
		client:   backend.NewClient(cfg.Client.BackendURL, cfg.Client.HTTPTimeout),
		settings: st,
	}, nil
}

func (a *app) service() *chat.Service {
	return chat.NewService(chat.NewStore(), a.settings, a.client, a.log)
}

var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the guruji chat backend",
	Long: `An interactive chat client. Each line you type is sent to the backend
with the current provider, model and knowledge-base selection; lines
starting with "/" are commands (type /help).`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.log.Sync() }()
		return runREPL(cmd.Context(), a)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.log.Sync() }()

		svc := a.service()
		svc.Store().EnsureDefault()
		ex, err := svc.Submit(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		reply := ex.Wait()
		fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
		return ex.Err()
	},
}

func runREPL(ctx context.Context, a *app) error {
	svc := a.service()
	r := repl.New(svc, prompts.NewLibrary(), a.client, os.Stdout)
	defer r.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("guruji chat, /help for commands")
	r.PrintActive()
	for {
		input, err := line.PromptWithSuggestion("> ", svc.Draft(), -1)
		if errors.Is(err, liner.ErrPromptAborted) {
			svc.SetDraft("")
			continue
		}
		if err != nil {
			// io.EOF on ctrl-d
			return nil
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		// an edited template replaces the draft before it is handled
		svc.SetDraft("")

		if err := r.Handle(ctx, input); errors.Is(err, repl.ErrQuit) {
			return nil
		}
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "backend base url (default $BACKEND_URL)")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "YAML settings file (default $CLIENT_SETTINGS_PATH)")
	rootCmd.AddCommand(sendCmd, newKBCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
