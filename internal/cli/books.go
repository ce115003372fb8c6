package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/libra/internal/bookview"
	"github.com/me/libra/internal/router"
	"github.com/me/libra/pkg/model"
)

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

func newBooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse the catalog",
	}
	cmd.AddCommand(newBooksListCmd(), newBooksSearchCmd(), newBooksShowCmd())
	return cmd
}

func newBooksListCmd() *cobra.Command {
	var q model.BookQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books",
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			books, err := a.api.ListBooks(cmd.Context(), q)
			if err != nil {
				return err
			}
			printBooks(a.out, books)
			return nil
		}),
	}
	cmd.Flags().StringVar(&q.Genre, "genre", "", "Only books in this genre")
	cmd.Flags().IntVar(&q.Page, "page", 0, "Result page")
	return cmd
}

func newBooksSearchCmd() *cobra.Command {
	var genre string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search by title, author, genre or ISBN",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			query := strings.Join(args, " ")
			books, err := a.api.ListBooks(cmd.Context(), model.BookQuery{Search: query, Genre: genre})
			if err != nil {
				return err
			}
			printBooks(a.out, books)
			return nil
		}),
	}
	cmd.Flags().StringVar(&genre, "genre", "", "Only books in this genre")
	return cmd
}

func newBooksShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show a book and what you can do with it",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			v := bookview.New(a.api, a.sessions, id, a.logger)
			defer v.Detach()
			if err := v.Activate(cmd.Context()); err != nil {
				return err
			}
			printBookView(a, v)
			return nil
		}),
	}
}

func printBookView(a *app, v *bookview.View) {
	b := v.Book()
	w := a.out
	fmt.Fprintf(w, "%s\n", b.Title)
	fmt.Fprintf(w, "  Author:    %s\n", b.AuthorNames())
	fmt.Fprintf(w, "  Genre:     %s\n", b.GenreNames())
	if b.ISBN != "" {
		fmt.Fprintf(w, "  ISBN:      %s\n", b.ISBN)
	}
	if b.PublicationYear != 0 {
		fmt.Fprintf(w, "  Published: %d\n", b.PublicationYear)
	}
	fmt.Fprintf(w, "  Stock:     %s\n", b.AvailabilityLabel())
	fmt.Fprintf(w, "  Favorite:  %s\n", yesNo(v.IsFavorite()))

	borrow := v.Borrowing()
	if borrow.Record != nil {
		fmt.Fprintf(w, "  Borrowing: #%d %s, due %s\n", borrow.Record.ID, borrow.Record.Status.Label(), dueLabel(borrow.Record.DueDate, a.now()))
	}
	aff := v.Affordance()
	action := aff.Label()
	if !aff.Enabled() {
		action += " (no action available)"
	}
	fmt.Fprintf(w, "  Action:    %s\n", action)
	if b.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", b.Summary)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newFavoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <book-id>",
		Short: "Toggle a book in your favorites",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			v := bookview.New(a.api, a.sessions, id, a.logger)
			defer v.Detach()
			if err := v.Activate(cmd.Context()); err != nil {
				return err
			}
			fav, err := v.ToggleFavorite(cmd.Context())
			if err != nil {
				return err
			}
			if fav {
				fmt.Fprintf(a.out, "Added %q to favorites.\n", v.Book().Title)
			} else {
				fmt.Fprintf(a.out, "Removed %q from favorites.\n", v.Book().Title)
			}
			return nil
		}),
	}
}

func newFavoritesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorites",
		Short: "List your favorite books",
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			books, err := a.api.ListFavorites(cmd.Context())
			if err != nil {
				return err
			}
			printBooks(a.out, books)
			return nil
		}),
	}
}
