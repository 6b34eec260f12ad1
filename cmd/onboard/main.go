// Command onboard runs the onboarding conversation against a local store.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/capitalize-ai/project-onboarding/internal/config"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	dbPath   string
	tenantID string
	userID   string
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "onboard",
		Short: "Set up a competitive-analysis project by chatting",
		Long: `onboard walks you through setting up a competitive-analysis project.

Describe your product, customers and reporting needs in one message
or answer one question at a time. When everything is collected you
confirm a summary and the project is created.

Commands:
  chat        Start or resume an onboarding conversation
  show        Print a stored session snapshot as YAML`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			if opts.dbPath == "" {
				opts.dbPath = config.Load().DBPath
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default $DB_PATH or onboarding.db)")
	root.PersistentFlags().StringVar(&opts.tenantID, "tenant", "local", "tenant ID")
	root.PersistentFlags().StringVar(&opts.userID, "user", os.Getenv("USER"), "user ID")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(newChatCmd(opts), newShowCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("error: "+err.Error()))
		os.Exit(1)
	}
}
