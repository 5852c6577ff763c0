// Package cli implements dialogctl, the administration tool for migrations,
// facilitator accounts, stored sessions and offline transcription.
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/database"
	"github.com/Messijah/PedagogiskDialog/internal/logging"
)

// app is the state shared by every subcommand, filled in before they run.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *logrus.Logger
}

// NewRootCommand builds the dialogctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "dialogctl",
		Short:         "Administer a Pedagogisk Dialog installation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if a.configPath != "" {
				a.cfg, err = config.LoadFile(a.configPath)
			} else {
				a.cfg, err = config.Load()
			}
			if err != nil {
				return err
			}
			a.logger = logging.NewWithOutput(a.cfg.Log, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a config file (default: search ./, ./config, ~/.pedagogiskdialog)")

	root.AddCommand(
		newMigrateCommand(a),
		newUserCommand(a),
		newSessionsCommand(a),
		newTranscribeCommand(a),
		newAudioCommand(a),
	)
	return root
}

// Execute runs dialogctl and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// connect opens the configured database. Migrations are not applied.
func (a *app) connect() (*database.DB, error) {
	return database.NewConnection(a.cfg.Database)
}
