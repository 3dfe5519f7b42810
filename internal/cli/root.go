// Package cli wires the folio commands together.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/comigor/folio-go/internal/api"
	"github.com/comigor/folio-go/internal/auth"
	"github.com/comigor/folio-go/internal/chat"
	"github.com/comigor/folio-go/internal/config"
	"github.com/comigor/folio-go/internal/errs"
	"github.com/comigor/folio-go/internal/logger"
	"github.com/comigor/folio-go/internal/session"
)

var (
	version = "dev"
	commit  = "unknown"
)

// app is built once per invocation and shared by the commands.
type app struct {
	cfg    *config.Config
	store  *session.Store
	client *api.Client
	auth   *auth.Service
	out    io.Writer
	render *renderer
}

func (a *app) newSyncer() *chat.Syncer {
	return chat.New(a.client, chat.WithInterval(a.cfg.Sync.PollInterval))
}

// guard runs before protected commands. Without a valid session the command
// stops and the user is pointed at login.
func (a *app) guard(ctx context.Context) error {
	u, err := a.auth.Require(ctx)
	if err != nil {
		return &errs.AuthError{Message: errs.UserMessage(err) + " Run `folio login` first.", Err: err}
	}
	logger.L.Debug("session restored", "user", u.Email)
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.L.Warn("session close failed", "error", err)
		}
	}
}

// NewRootCmd builds the folio command tree.
func NewRootCmd() *cobra.Command {
	var (
		cfgPath string
		verbose bool
	)
	a := &app{}

	root := &cobra.Command{
		Use:   "folio",
		Short: "Chat with the portfolio bot from your terminal",
		Long: `folio turns a resume into a hosted portfolio page.

Create a chat from your resume, iterate on the generated page with the bot,
preview it, and deploy it once you are happy.

Quick Start:
  folio login --email you@example.com
  folio new --title "My site" --resume cv.pdf
  folio open 1                             # interactive chat
  folio deploy 1`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.SetLevel(cfg.Log.Level)
			if verbose {
				logger.SetLevel("debug")
			}
			a.cfg = cfg
			a.out = cmd.OutOrStdout()
			a.store = session.Open(cfg.Session.DBPath)
			a.client = api.NewClient(cfg.API, a.store)
			a.auth = auth.NewService(a.client, a.store)
			a.render = newRenderer(a.out, cfg.Preview.Dir)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file (default ./config.yaml or ~/.folio/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newLoginCmd(a),
		newSignupCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newChatsCmd(a),
		newNewChatCmd(a),
		newMessagesCmd(a),
		newSendCmd(a),
		newDeployCmd(a),
		newOpenCmd(a),
		newStubServerCmd(a),
	)
	return root
}

// Execute runs the root command and prints the failure, if any, to stderr.
func Execute(ctx context.Context) error {
	return execute(ctx, NewRootCmd(), os.Stderr)
}

func execute(ctx context.Context, root *cobra.Command, stderr io.Writer) error {
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("Error: "+errs.UserMessage(err)))
		logger.L.Debug("command failed", "error", err)
	}
	return err
}
