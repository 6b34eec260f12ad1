package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/project-onboarding/internal/config"
	"github.com/capitalize-ai/project-onboarding/internal/middleware"
	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/service"
)

type chatOptions struct {
	sessionID string
	flow      string
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start or resume an onboarding conversation",
		Long: `Start a new onboarding conversation, or resume one with --session.

End a line with a backslash to continue your message on the next line.
Type /quit to leave; the session is saved after every turn.

Examples:
  onboard chat
  onboard chat --flow legacy
  onboard chat --session 0192b8a4-7a9e-7cc1-a1a5-6a3d4e0c9b11`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := middleware.ValidateFlowMode(model.FlowMode(opts.flow)); err != nil {
				return err
			}
			if opts.sessionID != "" {
				if err := middleware.ValidateSessionID(opts.sessionID); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			st, err := openStack(ctx, config.Load(), root.dbPath, newLogger(root.verbose))
			if err != nil {
				return err
			}
			defer st.Close()

			return runChat(ctx, st.sessions, cmd.InOrStdin(), cmd.OutOrStdout(), root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.sessionID, "session", "", "resume an existing session")
	cmd.Flags().StringVar(&opts.flow, "flow", "", "conversation flow for new sessions: comprehensive or legacy")
	return cmd
}

func runChat(ctx context.Context, svc *service.SessionService, in io.Reader, out io.Writer, root *rootOptions, opts *chatOptions) error {
	sessionID := opts.sessionID
	if sessionID == "" {
		created, err := svc.Create(ctx, root.tenantID, root.userID, model.FlowMode(opts.flow))
		if err != nil {
			return err
		}
		sessionID = created.Session.ID
		fmt.Fprintln(out, styleMuted.Render("session "+sessionID))
		printReply(out, created.AssistantText)
	} else {
		sess, err := svc.Get(ctx, root.tenantID, sessionID)
		if err != nil {
			return fmt.Errorf("resume session %s: %w", sessionID, err)
		}
		fmt.Fprintln(out, styleMuted.Render(fmt.Sprintf("resuming session %s at step %s", sess.ID, sess.CurrentStep())))
		if last := lastAssistantMessage(sess); last != "" {
			printReply(out, last)
		}
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), middleware.MaxMessageLength*4)

	for {
		text, ok := readMessage(scanner, out)
		if !ok {
			break
		}
		switch strings.TrimSpace(text) {
		case "":
			continue
		case "/quit", "/exit":
			fmt.Fprintln(out, styleMuted.Render("saved. resume with: onboard chat --session "+sessionID))
			return nil
		}
		if err := middleware.ValidateMessageContent(text); err != nil {
			fmt.Fprintln(out, styleError.Render(err.Error()))
			continue
		}

		resp, err := svc.SubmitMessage(ctx, root.tenantID, root.userID, sessionID, text)
		if err != nil {
			return err
		}
		printReply(out, resp.AssistantText)

		if resp.NextStep == model.StepComplete && resp.ProjectID != "" {
			fmt.Fprintln(out, styleSuccess.Render("project "+resp.ProjectID+" is ready"))
			return nil
		}
	}
	return scanner.Err()
}

// readMessage reads one message. Lines ending in a backslash are joined
// with the next line.
func readMessage(scanner *bufio.Scanner, out io.Writer) (string, bool) {
	var lines []string
	fmt.Fprint(out, stylePrompt.Render("> "))
	for scanner.Scan() {
		line := scanner.Text()
		if cont, ok := strings.CutSuffix(line, `\`); ok {
			lines = append(lines, cont)
			fmt.Fprint(out, stylePrompt.Render(". "))
			continue
		}
		lines = append(lines, line)
		return strings.Join(lines, "\n"), true
	}
	if len(lines) > 0 {
		return strings.Join(lines, "\n"), true
	}
	return "", false
}

func printReply(out io.Writer, text string) {
	fmt.Fprintln(out, replyBox().Render(styleAssistant.Render(text)))
}

func lastAssistantMessage(sess *model.Session) string {
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].Role == model.RoleAssistant {
			return sess.Messages[i].Content
		}
	}
	return ""
}
