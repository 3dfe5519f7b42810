package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/comigor/folio-go/internal/chat"
	"github.com/comigor/folio-go/internal/errs"
	"github.com/comigor/folio-go/internal/model"
)

func parseChatID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, errs.Invalid("chat", fmt.Sprintf("Invalid chat id %q.", arg))
	}
	return id, nil
}

// openChat guards the session, loads the chat list and opens id. The caller
// must Close the returned syncer.
func (a *app) openChat(ctx context.Context, id int) (*chat.Syncer, error) {
	if err := a.guard(ctx); err != nil {
		return nil, err
	}
	s := a.newSyncer()
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	if err := s.SelectID(ctx, id); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newChatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List your chats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.guard(cmd.Context()); err != nil {
				return err
			}
			s := a.newSyncer()
			if err := s.Refresh(cmd.Context()); err != nil {
				return err
			}
			a.render.chatList(s.View().Chats, 0)
			return nil
		},
	}
}

func newNewChatCmd(a *app) *cobra.Command {
	var title, resumePath, description string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a chat from a resume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.guard(ctx); err != nil {
				return err
			}
			in := model.NewChat{Title: title, Description: description}
			if resumePath != "" {
				data, err := os.ReadFile(resumePath)
				if err != nil {
					return errs.Invalid("resume", fmt.Sprintf("Cannot read resume: %v", err))
				}
				in.Resume = data
				in.ResumeName = filepath.Base(resumePath)
			}

			s := a.newSyncer()
			defer s.Close()
			if err := s.Refresh(ctx); err != nil {
				return err
			}
			if err := s.Create(ctx, in); err != nil {
				return err
			}
			v := s.View()
			a.render.header(v.Current)
			a.render.update(v)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Chat title")
	cmd.Flags().StringVarP(&resumePath, "resume", "r", "", "Path to the resume file")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Additional description for the page")
	return cmd
}

func newMessagesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "messages <chat-id>",
		Short: "Print a chat's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			s, err := a.openChat(cmd.Context(), id)
			if err != nil {
				return err
			}
			defer s.Close()
			v := s.View()
			a.render.header(v.Current)
			a.render.update(v)
			return nil
		},
	}
}

func newSendCmd(a *app) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "send <chat-id> <message...>",
		Short: "Send a message to the bot",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.openChat(ctx, id)
			if err != nil {
				return err
			}
			defer s.Close()
			a.render.update(s.View())

			replied := make(chan struct{}, 1)
			s.OnChange(func(v chat.View) {
				a.render.update(v)
				if v.Loaded && !chat.NeedsRefetch(v.Messages) {
					select {
					case replied <- struct{}{}:
					default:
					}
				}
			})
			if err := s.Send(ctx, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			if wait <= 0 || !chat.NeedsRefetch(s.View().Messages) {
				return nil
			}
			// keep polling until the bot answers
			select {
			case <-replied:
			case <-time.After(wait):
				fmt.Fprintln(a.out, mutedStyle.Render("No reply yet; check again with `folio messages "+args[0]+"`."))
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	}
	cmd.Flags().DurationVarP(&wait, "wait", "w", 0, "Keep polling up to this long for the bot's reply")
	return cmd
}

func newDeployCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy <chat-id>",
		Short: "Publish the latest generated page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			s, err := a.openChat(cmd.Context(), id)
			if err != nil {
				return err
			}
			defer s.Close()
			url, err := s.Deploy(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, okStyle.Render("Deployed: ")+url)
			return nil
		},
	}
}
