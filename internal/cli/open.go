package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/comigor/folio-go/internal/chat"
	"github.com/comigor/folio-go/internal/errs"
	"github.com/comigor/folio-go/internal/logger"
)

const openHelp = `Type a message and press enter to send it.
  /deploy   publish the latest generated page
  /refresh  reload the chat list and messages
  /chats    list chats
  /switch N open chat N
  /quit     leave (Ctrl-D works too)`

func newOpenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open [chat-id]",
		Short: "Open a chat interactively",
		Long:  "Open a chat and keep it in sync while you talk to the bot.\n\n" + openHelp,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.guard(ctx); err != nil {
				return err
			}
			s := a.newSyncer()
			defer s.Close()
			if err := s.Refresh(ctx); err != nil {
				return err
			}

			p := newPrompter(cmd.InOrStdin())
			defer p.Close()

			id := 0
			if len(args) == 1 {
				var err error
				if id, err = parseChatID(args[0]); err != nil {
					return err
				}
			} else {
				a.render.chatList(s.View().Chats, 0)
				answer, err := p.readLine("Chat #: ")
				if err != nil {
					if aborted(err) {
						return nil
					}
					return err
				}
				if id, err = parseChatID(strings.TrimSpace(answer)); err != nil {
					return err
				}
			}

			s.OnChange(a.render.update)
			if err := a.switchTo(ctx, s, id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, mutedStyle.Render(openHelp))
			return a.loop(ctx, s, p)
		},
	}
}

func (a *app) switchTo(ctx context.Context, s *chat.Syncer, id int) error {
	// header first so it precedes the messages the select prints
	for _, c := range s.View().Chats {
		if c.ID == id {
			a.render.header(&c)
			break
		}
	}
	return s.SelectID(ctx, id)
}

// loop reads lines until the user quits. Errors from individual commands are
// shown through the view and do not end the session.
func (a *app) loop(ctx context.Context, s *chat.Syncer, p *prompter) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := p.readLine("> ")
		if err != nil {
			if aborted(err) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		quit, err := a.handleLine(ctx, s, line)
		if err != nil {
			logger.L.Debug("command failed", "input", line, "error", err)
			// skip messages the view already printed
			if msg := errs.UserMessage(err); msg != s.View().Err {
				fmt.Fprintln(a.out, errorStyle.Render(msg))
			}
		}
		if quit {
			return nil
		}
	}
}

func (a *app) handleLine(ctx context.Context, s *chat.Syncer, line string) (quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		return false, s.Send(ctx, line)
	}
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help":
		fmt.Fprintln(a.out, mutedStyle.Render(openHelp))
	case "/chats":
		v := s.View()
		id := 0
		if v.Current != nil {
			id = v.Current.ID
		}
		a.render.chatList(v.Chats, id)
	case "/refresh":
		if err := s.Refresh(ctx); err != nil {
			return false, err
		}
		if v := s.View(); v.Current != nil {
			return false, s.SelectID(ctx, v.Current.ID)
		}
	case "/switch":
		id, err := parseChatID(strings.TrimSpace(arg))
		if err != nil {
			return false, err
		}
		return false, a.switchTo(ctx, s, id)
	case "/deploy":
		url, err := s.Deploy(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(a.out, okStyle.Render("Deployed: ")+url)
	default:
		return false, errs.Invalid("command", fmt.Sprintf("Unknown command %s. Type /help.", cmd))
	}
	return false, nil
}
