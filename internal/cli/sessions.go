package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/repository/sqlstore"
	"github.com/Messijah/PedagogiskDialog/internal/services"
	"github.com/Messijah/PedagogiskDialog/internal/workflow"
)

func newSessionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and remove stored dialogue sessions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every session, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.connect()
			if err != nil {
				return err
			}
			defer db.Close()

			sessions, err := sqlstore.NewSessionRepository(db.DB).ListAll(context.Background())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFACILITATOR\tSTAGE\tCOMPLETED\tCREATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%t\t%s\n",
					s.ID, s.Name, s.FacilitatorName, s.CurrentStage, models.StageCount, s.Completed, s.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show stage status of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := loadSession(a, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\nFacilitator: %s\nParticipants: %s\nProgress: %.0f%%\n\n",
				session.Name, session.ID, session.FacilitatorName, session.Participants, workflow.Progress(session)*100)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tTITLE\tACCESSIBLE\tAPPROVED\tOUTPUT\tAUDIO")
			for _, st := range workflow.Status(session).Stages {
				fmt.Fprintf(w, "%d\t%s\t%t\t%t\t%t\t%t\n", st.Number, st.Title, st.Accessible, st.Approved, st.HasOutput, st.HasAudio)
			}
			return w.Flush()
		},
	}

	var exportPath string
	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Write the action plan of a session as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := loadSession(a, args[0])
			if err != nil {
				return err
			}
			doc := services.RenderExport(session, timeNow())
			if exportPath == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
				return err
			}
			return os.WriteFile(exportPath, []byte(doc), 0o644)
		},
	}
	export.Flags().StringVarP(&exportPath, "output", "o", "", "Write to a file instead of stdout")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session (recordings are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}
			db, err := a.connect()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqlstore.NewSessionRepository(db.DB).DeleteByID(context.Background(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted session %s\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, show, export, del)
	return cmd
}

func loadSession(a *app, raw string) (*models.Session, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q", raw)
	}
	db, err := a.connect()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return sqlstore.NewSessionRepository(db.DB).GetByID(context.Background(), id)
}
