package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/libra/internal/router"
	"github.com/me/libra/pkg/model"
)

func newLoginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the library",
		RunE: withApp(router.TreeAuth, func(cmd *cobra.Command, a *app, args []string) error {
			if err := valueOrPrompt(cmd, &username, "Username", false); err != nil {
				return err
			}
			if err := valueOrPrompt(cmd, &password, "Password", true); err != nil {
				return err
			}
			snap, err := a.sessions.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s\n", snap.User.DisplayName())
			return nil
		}),
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted if omitted)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted if omitted)")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var reg model.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a library account",
		RunE: withApp(router.TreeAuth, func(cmd *cobra.Command, a *app, args []string) error {
			for _, p := range []struct {
				v      *string
				label  string
				secret bool
			}{
				{&reg.Username, "Username", false},
				{&reg.Email, "Email", false},
				{&reg.Password, "Password", true},
				{&reg.ConfirmPassword, "Confirm password", true},
			} {
				if err := valueOrPrompt(cmd, p.v, p.label, p.secret); err != nil {
					return err
				}
			}
			snap, err := a.sessions.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Welcome, %s! Your account is ready.\n", snap.User.DisplayName())
			return nil
		}),
	}

	f := cmd.Flags()
	f.StringVarP(&reg.Username, "username", "u", "", "Username")
	f.StringVar(&reg.Email, "email", "", "Email address")
	f.StringVar(&reg.FullName, "full-name", "", "Full name")
	f.StringVarP(&reg.Password, "password", "p", "", "Password (prompted if omitted)")
	f.StringVar(&reg.ConfirmPassword, "confirm-password", "", "Password again (prompted if omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: withApp(router.TreeAny, func(cmd *cobra.Command, a *app, args []string) error {
			if !a.sessions.Snapshot().IsAuthenticated() {
				fmt.Fprintln(a.out, "Not logged in.")
				return nil
			}
			if err := a.sessions.Logout(cmd.Context()); err != nil {
				// The session is already gone locally.
				a.logger.Warn("clear stored credentials", "error", err)
			}
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		}),
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in member",
		RunE: withApp(router.TreeAny, func(cmd *cobra.Command, a *app, args []string) error {
			snap := a.sessions.Snapshot()
			if !snap.IsAuthenticated() {
				fmt.Fprintln(a.out, "Not logged in.")
				return nil
			}
			fmt.Fprintf(a.out, "%s (%s)\n", snap.User.DisplayName(), snap.User.Username)
			if snap.User.Email != "" {
				fmt.Fprintf(a.out, "  Email:  %s\n", snap.User.Email)
			}
			fmt.Fprintf(a.out, "  Server: %s\n", a.cfg.Server)
			return nil
		}),
	}
}

func newResetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password [email]",
		Short: "Request a password reset e-mail",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(router.TreeAuth, func(cmd *cobra.Command, a *app, args []string) error {
			var email string
			if len(args) == 1 {
				email = args[0]
			}
			if err := valueOrPrompt(cmd, &email, "Email", false); err != nil {
				return err
			}
			if email == "" {
				return fmt.Errorf("please enter your email address")
			}
			if err := a.api.RequestPasswordReset(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "If %s belongs to an account, a reset link is on its way.\n", email)
			return nil
		}),
	}
}
