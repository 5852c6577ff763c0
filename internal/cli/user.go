package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Messijah/PedagogiskDialog/internal/auth"
	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/repository/sqlstore"
)

func newUserCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage facilitator accounts",
	}
	cmd.AddCommand(
		newUserCreateCommand(a),
		newUserPasswordCommand(a),
		newUserTokenCommand(a),
		newUserListCommand(a),
	)
	return cmd
}

func newUserCreateCommand(a *app) *cobra.Command {
	var email, password, name string
	var admin bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a facilitator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			role := models.RoleFacilitator
			if admin {
				role = models.RoleAdmin
			}
			user, err := auth.NewUser(email, password, name, role)
			if err != nil {
				return err
			}

			db, err := a.connect()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqlstore.NewUserRepository(db.DB).Create(context.Background(), user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant the admin role")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserPasswordCommand(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Replace a user's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			db, err := a.connect()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			users := sqlstore.NewUserRepository(db.DB)
			user, err := users.GetByEmail(ctx, email)
			if err != nil {
				return err
			}
			if err := users.UpdatePassword(ctx, user.ID, hash); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&password, "password", "", "New password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// The token command signs an access token with the configured secret, for
// scripting against the HTTP API.
func newUserTokenCommand(a *app) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}

			db, err := a.connect()
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := sqlstore.NewUserRepository(db.DB).GetByEmail(context.Background(), email)
			if err != nil {
				return err
			}
			if !user.IsActive {
				return auth.ErrUserInactive
			}

			jwt := auth.NewJWTService(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer, a.cfg.Auth.AccessTokenTTL, a.cfg.Auth.RefreshTokenTTL)
			access, _, err := jwt.GenerateTokenPair(user.ID, user.Email, user.Role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), access)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserListCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.connect()
			if err != nil {
				return err
			}
			defer db.Close()

			users, err := sqlstore.NewUserRepository(db.DB).List(context.Background(), limit, 0)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tACTIVE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.Email, u.FullName, u.Role, u.IsActive)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of users")
	return cmd
}
