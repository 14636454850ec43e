package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PIO-VIA/Snapppy/internal/chats"
	"github.com/PIO-VIA/Snapppy/internal/chats/service"
	"github.com/PIO-VIA/Snapppy/internal/devserver"
	"github.com/PIO-VIA/Snapppy/internal/lib/logger/sl"
	"github.com/PIO-VIA/Snapppy/internal/messages"
	"github.com/PIO-VIA/Snapppy/internal/realtime"
)

func withApp(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return run(ctx, a, args)
	}
}

func signinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signin",
		Short: "Cache the profile behind the configured token for offline use",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			user, err := a.api.CurrentUser(ctx)
			if err != nil {
				return err
			}
			if user == nil {
				return chats.ErrNoRequester
			}

			if err := a.service.SignIn(ctx, *user); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "signed in as %s (%s)\n", user.DisplayName, user.ExternalID)
			return nil
		}),
	}
}

func chatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			list, err := a.service.GetUserChats(ctx)
			if err != nil {
				return err
			}
			return render(os.Stdout, list, func(w io.Writer) { printChats(w, list) })
		}),
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <name>",
		Short: "Show the conversation with a user",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			msgs, err := a.service.GetChatDetails(ctx, args[0])
			if err != nil {
				return err
			}
			return render(os.Stdout, msgs, func(w io.Writer) { printMessages(w, msgs) })
		}),
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <name> <text...>",
		Short: "Send a text message",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			body := strings.Join(args[1:], " ")

			sent, err := a.service.SendMessage(ctx, body, args[0], pendingPrinter(os.Stdout))
			if err != nil {
				return err
			}
			return render(os.Stdout, sent, func(w io.Writer) { printMessages(w, sent) })
		}),
	}
}

func attachCmd() *cobra.Command {
	var mimeType string

	cmd := &cobra.Command{
		Use:   "attach <name> <file>",
		Short: "Send a file",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			file := service.FileInput{
				URI:      args[1],
				MimeType: mimeType,
				Path:     args[1],
			}

			sent, err := a.service.SendMessageWithAttachment(ctx, file, args[0], pendingPrinter(os.Stdout))
			if err != nil {
				return err
			}
			return render(os.Stdout, sent, func(w io.Writer) { printMessages(w, sent) })
		}),
	}

	cmd.Flags().StringVar(&mimeType, "mime", "", "content type (detected when empty)")

	return cmd
}

func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Receive incoming messages until interrupted",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			endpoint, err := wsURL(a.cfg.API)
			if err != nil {
				return err
			}

			l := realtime.New(endpoint, a.cfg.API.Token, a.service, a.log)
			l.OnConnect = func() {
				fmt.Fprintln(os.Stderr, "connected, waiting for messages")
			}

			return l.Run(ctx, func(senderName string, conversation []messages.Message) {
				err := render(os.Stdout, conversation, func(w io.Writer) {
					fmt.Fprintf(w, "== %s ==\n", senderName)
					printMessages(w, conversation)
				})
				if err != nil {
					a.log.Error("failed to print conversation", sl.Err(err))
				}
			})
		}),
	}
}

func devserverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devserver",
		Short: "Run an in-memory chat API for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			return devserver.Run(ctx, cfg, log)
		},
	}
}

func pendingPrinter(w io.Writer) service.PendingFunc {
	return func(m messages.Message) {
		if outputFormat != outputText && outputFormat != "" {
			return
		}
		fmt.Fprintf(w, "sending... %s\n", describe(m))
	}
}

func printChats(w io.Writer, list []chats.ChatResource) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no conversations")
		return
	}

	for _, c := range list {
		name := c.Interlocutor.DisplayName
		if name == "" {
			name = c.Interlocutor.ExternalID
		}

		if c.LastMessage == nil {
			fmt.Fprintf(w, "%-20s\n", name)
			continue
		}
		fmt.Fprintf(w, "%-20s %s  %s\n", name, c.LastMessage.CreatedAt.Format("2006-01-02 15:04"), describe(*c.LastMessage))
	}
}

func printMessages(w io.Writer, msgs []messages.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "no messages")
		return
	}

	for _, m := range msgs {
		fmt.Fprintf(w, "[%s] %s: %s %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"), m.Sender, describe(m), ackMark(m.Ack))
	}
}

func ackMark(a messages.Ack) string {
	switch a {
	case messages.AckSent:
		return "(sent)"
	case messages.AckReceived:
		return "(delivered)"
	case messages.AckRead:
		return "(read)"
	}
	return ""
}

func describe(m messages.Message) string {
	if m.Body != "" {
		return m.Body
	}

	names := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		names = append(names, a.Filename)
	}
	return "file : " + strings.Join(names, ", ")
}
