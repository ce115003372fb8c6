package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/libra/internal/push"
	"github.com/me/libra/internal/router"
)

func newDeviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage push notification registration",
	}
	cmd.AddCommand(newDeviceRegisterCmd())
	return cmd
}

func newDeviceRegisterCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this device's push token with your account",
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			r := a.push
			if token != "" {
				r = a.newRegistrar(push.StaticProvider(token))
				a.push = r
			}
			tok, err := r.Acquire(ctx)
			if err != nil {
				return err
			}
			if err := r.Sync(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Push token %s is registered for %s.\n", tok, a.sessions.Snapshot().Username())
			return nil
		}),
	}
	cmd.Flags().StringVar(&token, "token", "", "Push token to register (default: configured or per-installation token)")
	return cmd
}
