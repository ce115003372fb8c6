package cli

import (
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagConfig    string
	flagDB        string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
)

// NewRootCmd creates the root cobra command for the libra CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "libra",
		Short: "Library member client",
		Long:  "libra browses the catalog, manages favorites and borrowings, and reads notifications from a library backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", "", "Library API root (or LIBRA_SERVER env)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.libra/config.yaml)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "Credential database path (or LIBRA_DB env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newResetPasswordCmd(),
		newProfileCmd(),
		newBooksCmd(),
		newFavoriteCmd(),
		newFavoritesCmd(),
		newBorrowCmd(),
		newCancelCmd(),
		newLoansCmd(),
		newLoanCmd(),
		newNotificationsCmd(),
		newDeviceCmd(),
	)

	return root
}
