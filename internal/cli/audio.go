package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Messijah/PedagogiskDialog/internal/audio"
	"github.com/Messijah/PedagogiskDialog/internal/repository/sqlstore"
)

var timeNow = time.Now

func newAudioCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Maintain stored recordings",
	}

	var remove bool
	orphans := &cobra.Command{
		Use:   "orphans",
		Short: "List recordings no session refers to",
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := audio.NewStorage(a.cfg.Audio)
			if err != nil {
				return err
			}
			db, err := a.connect()
			if err != nil {
				return err
			}
			defer db.Close()

			referenced, err := sqlstore.NewSessionRepository(db.DB).AudioPaths(context.Background())
			if err != nil {
				return err
			}
			names, err := storage.Orphans(referenced)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range names {
				if remove {
					if err := os.Remove(filepath.Join(storage.Dir(), name)); err != nil {
						return err
					}
					fmt.Fprintln(out, "removed", name)
					continue
				}
				fmt.Fprintln(out, name)
			}
			if len(names) == 0 {
				fmt.Fprintln(out, "No orphaned recordings.")
			}
			return nil
		},
	}
	orphans.Flags().BoolVar(&remove, "delete", false, "Delete the orphaned files")

	cmd.AddCommand(orphans)
	return cmd
}
