package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/project-onboarding/internal/config"
	"github.com/capitalize-ai/project-onboarding/internal/middleware"
	"github.com/capitalize-ai/project-onboarding/internal/model"
)

// sessionView is the YAML rendering of a session snapshot.
type sessionView struct {
	ID            string                   `yaml:"id"`
	TenantID      string                   `yaml:"tenant_id,omitempty"`
	Step          model.Step               `yaml:"step"`
	Flow          model.FlowMode           `yaml:"flow"`
	ProjectID     string                   `yaml:"project_id,omitempty"`
	AwaitingField model.Field              `yaml:"awaiting_field,omitempty"`
	Missing       []model.Field            `yaml:"missing,omitempty"`
	Record        model.RequirementsRecord `yaml:"record"`
	Messages      []messageView            `yaml:"messages,omitempty"`
	UpdatedAt     time.Time                `yaml:"updated_at"`
}

type messageView struct {
	Role    model.Role `yaml:"role"`
	Step    model.Step `yaml:"step"`
	Content string     `yaml:"content"`
}

func newShowCmd(root *rootOptions) *cobra.Command {
	var withMessages bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a stored session snapshot as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := middleware.ValidateSessionID(args[0]); err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := openStack(ctx, config.Load(), root.dbPath, newLogger(root.verbose))
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := st.sessions.Get(ctx, root.tenantID, args[0])
			if err != nil {
				return fmt.Errorf("load session %s: %w", args[0], err)
			}
			return writeSession(cmd.OutOrStdout(), sess, withMessages)
		},
	}
	cmd.Flags().BoolVar(&withMessages, "messages", false, "include the message log")
	return cmd
}

func writeSession(out io.Writer, sess *model.Session, withMessages bool) error {
	view := sessionView{
		ID:            sess.ID,
		TenantID:      sess.TenantID,
		Step:          sess.CurrentStep(),
		Flow:          sess.FlowMode,
		ProjectID:     sess.ProjectID,
		AwaitingField: sess.AwaitingField,
		Record:        sess.CollectedData.Record,
		UpdatedAt:     sess.UpdatedAt,
	}
	for _, f := range model.RequiredFields {
		if sess.CollectedData.Record.Get(f) == "" {
			view.Missing = append(view.Missing, f)
		}
	}
	if withMessages {
		for _, m := range sess.Messages {
			view.Messages = append(view.Messages, messageView{Role: m.Role, Step: m.Step, Content: m.Content})
		}
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return enc.Close()
}
