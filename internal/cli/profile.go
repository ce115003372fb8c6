package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/me/libra/internal/router"
	"github.com/me/libra/pkg/model"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your member profile",
	}
	cmd.AddCommand(newProfileShowCmd(), newProfileUpdateCmd())
	return cmd
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			p, err := a.api.Profile(cmd.Context())
			if err != nil {
				return err
			}
			merged := a.sessions.Snapshot().User.Merge(p)
			if err := a.sessions.UpdateUser(cmd.Context(), &merged); err != nil {
				a.logger.Warn("refresh stored profile", "error", err)
			}
			printProfile(a.out, &merged)
			return nil
		}),
	}
}

func printProfile(w io.Writer, p *model.UserProfile) {
	fmt.Fprintf(w, "%s (%s)\n", p.DisplayName(), p.Username)
	rows := []struct{ label, value string }{
		{"Email", p.Email},
		{"Phone", p.PhoneNumber},
		{"Address", p.PhysicalAddress},
	}
	if p.BirthDate != nil {
		rows = append(rows, struct{ label, value string }{"Born", p.BirthDate.String()})
	}
	for _, r := range rows {
		if r.value != "" {
			fmt.Fprintf(w, "  %-8s %s\n", r.label+":", r.value)
		}
	}
}

func newProfileUpdateCmd() *cobra.Command {
	var next model.UserProfile
	var birth string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields",
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			current := a.sessions.Snapshot().User
			// Unset flags keep the current value.
			merged := *current
			f := cmd.Flags()
			for name, dst := range map[string]*string{
				"full-name":  &merged.FullName,
				"first-name": &merged.FirstName,
				"last-name":  &merged.LastName,
				"phone":      &merged.PhoneNumber,
				"address":    &merged.PhysicalAddress,
			} {
				if f.Changed(name) {
					v, _ := f.GetString(name)
					*dst = v
				}
			}
			if f.Changed("birth-date") {
				d, err := model.ParseDate(birth)
				if err != nil {
					return fmt.Errorf("birth date must be YYYY-MM-DD: %w", err)
				}
				merged.BirthDate = &d
			}

			upd := model.Diff(*current, merged)
			if upd.IsEmpty() {
				return errors.New("nothing to update")
			}
			p, err := a.api.UpdateProfile(cmd.Context(), upd)
			if err != nil {
				return err
			}
			saved := merged.Merge(p)
			if err := a.sessions.UpdateUser(cmd.Context(), &saved); err != nil {
				a.logger.Warn("store updated profile", "error", err)
			}
			fmt.Fprintln(a.out, "Profile updated.")
			printProfile(a.out, &saved)
			return nil
		}),
	}

	f := cmd.Flags()
	f.StringVar(&next.FullName, "full-name", "", "Full name")
	f.StringVar(&next.FirstName, "first-name", "", "First name")
	f.StringVar(&next.LastName, "last-name", "", "Last name")
	f.StringVar(&next.PhoneNumber, "phone", "", "Phone number")
	f.StringVar(&next.PhysicalAddress, "address", "", "Physical address")
	f.StringVar(&birth, "birth-date", "", "Birth date (YYYY-MM-DD)")
	return cmd
}
