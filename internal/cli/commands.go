package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ragbot/internal/config"
	"ragbot/internal/dispatch"
	"ragbot/internal/logger"
	"ragbot/internal/server"
	"ragbot/internal/tui"
)

func newServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the messaging webhook server",
		Long: `Index the reference document, then serve the webhook:

  GET  /             liveness text
  POST /, /whatsapp  inbound message (form field Body), TwiML reply
  GET  /report/{id}  report download by 0-based index
  GET  /healthz      JSON status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			h := server.NewHandler(a.dispatcher, a.reports, server.Status{
				Subject:  cfg.Subject,
				Document: a.kb.Document.Path,
				Chunks:   a.kb.Chunks,
				Embedder: a.kb.Embedder.Name(),
			}, log)
			srv := server.New(cfg.Server.Addr, server.NewRouter(h), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second, log)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func newChatCommand() *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the bot in the terminal",
		Long: `Index the reference document, then open a full-screen chat console.

The console owns the terminal, so log output goes to --log-file, or nowhere
when the flag is empty.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			log, closeLog, err := consoleLogger(logFile, cfg.Log.Verbose)
			if err != nil {
				return err
			}
			defer closeLog()

			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			m := tui.New(a.dispatcher, cfg.Subject, a.kb.Summary, time.Duration(cfg.Generator.TimeoutSecs+5)*time.Second)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "append log output to this file while the console runs")
	return cmd
}

// consoleLogger builds a logger that stays off the terminal: it appends to
// path, or discards everything when path is empty.
func consoleLogger(path string, verbose bool) (*logger.Logger, func() error, error) {
	if path == "" {
		return logger.NewWithWriter("ragbot", verbose, io.Discard), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logger.NewWithWriter("ragbot", verbose, f), f.Close, nil
}

func newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the reply",
		Example: `  ragbot ask "How often should I replace the cartridge?"
  ragbot ask get report
  ragbot ask report 1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			reply := a.dispatcher.Dispatch(cmd.Context(), strings.Join(args, " "))
			printReply(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

func printReply(w io.Writer, reply dispatch.Reply) {
	for _, seg := range reply.Segments {
		fmt.Fprintln(w, seg.Text)
		if seg.MediaURL != "" {
			fmt.Fprintf(w, "[attachment] %s\n", seg.MediaURL)
		}
	}
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	})
	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.UserConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
