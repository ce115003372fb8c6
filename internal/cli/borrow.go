package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/libra/internal/bookview"
	"github.com/me/libra/internal/router"
	"github.com/me/libra/pkg/model"
)

// defaultLoanDays is the due date offered when none is given.
const defaultLoanDays = 14

func newBorrowCmd() *cobra.Command {
	var due string
	var days int

	cmd := &cobra.Command{
		Use:   "borrow <book-id>",
		Short: "Request to borrow a book",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			dueDate := model.DateOf(a.now()).AddDays(days)
			if due != "" {
				if dueDate, err = model.ParseDate(due); err != nil {
					return fmt.Errorf("due date must be YYYY-MM-DD: %w", err)
				}
			}

			v := bookview.New(a.api, a.sessions, id, a.logger, bookview.WithClock(a.now))
			defer v.Detach()
			if err := v.Activate(cmd.Context()); err != nil {
				return err
			}
			rec, err := v.RequestBorrow(cmd.Context(), dueDate)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Requested %q (borrowing #%d), due %s.\n", v.Book().Title, rec.ID, dueLabel(rec.DueDate, a.now()))
			return nil
		}),
	}
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", defaultLoanDays, "Loan length in days when --due is not given")
	return cmd
}

func newCancelCmd() *cobra.Command {
	var bookID int64

	cmd := &cobra.Command{
		Use:   "cancel [borrowing-id]",
		Short: "Withdraw a pending borrow request",
		Long:  "Withdraw a pending borrow request, either by borrowing id or with --book for the request on that book.",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			switch {
			case bookID != 0 && len(args) == 0:
				v := bookview.New(a.api, a.sessions, bookID, a.logger)
				defer v.Detach()
				if err := v.Activate(ctx); err != nil {
					return err
				}
				if err := v.CancelRequest(ctx); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Cancelled your request for %q.\n", v.Book().Title)
				return nil
			case bookID == 0 && len(args) == 1:
			default:
				return errors.New("give either a borrowing id or --book")
			}

			id, err := parseID(args[0], "borrowing")
			if err != nil {
				return err
			}
			shelf := bookview.NewShelf(a.api, a.logger)
			if err := shelf.Load(ctx); err != nil {
				return err
			}
			if err := shelf.Cancel(ctx, id); err != nil {
				if errors.Is(err, bookview.ErrNothingToCancel) {
					return fmt.Errorf("borrowing #%d is not a pending request", id)
				}
				return err
			}
			fmt.Fprintf(a.out, "Cancelled borrowing #%d.\n", id)
			return nil
		}),
	}
	cmd.Flags().Int64Var(&bookID, "book", 0, "Cancel the pending request for this book")
	return cmd
}

func newLoansCmd() *cobra.Command {
	var history bool

	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List your current borrowings",
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			shelf := bookview.NewShelf(a.api, a.logger)
			if err := shelf.Load(cmd.Context()); err != nil {
				return err
			}
			records, empty := shelf.Current(), "You have no current borrowings."
			if history {
				records, empty = shelf.History(), "Your borrowing history is empty."
			}
			if len(records) == 0 {
				fmt.Fprintln(a.out, empty)
				return nil
			}
			printBorrowings(a.out, records, a.now())
			return nil
		}),
	}
	cmd.Flags().BoolVar(&history, "history", false, "Show finished borrowings instead")
	return cmd
}

func newLoanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loan <borrowing-id>",
		Short: "Show one borrowing",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0], "borrowing")
			if err != nil {
				return err
			}
			rec, err := a.api.GetBorrowing(cmd.Context(), id)
			if err != nil {
				return err
			}
			w := a.out
			title := fmt.Sprintf("book #%d", rec.BookRef())
			if b := rec.ResolvedBook(); b != nil {
				title = b.Title
			}
			fmt.Fprintf(w, "Borrowing #%d: %s\n", rec.ID, title)
			fmt.Fprintf(w, "  Status:    %s\n", rec.Status.Label())
			fmt.Fprintf(w, "  Requested: %s\n", whenLabel(rec.RequestDate))
			if rec.IssueDate != nil {
				fmt.Fprintf(w, "  Issued:    %s\n", whenLabel(rec.IssueDate))
			}
			fmt.Fprintf(w, "  Due:       %s\n", dueLabel(rec.DueDate, a.now()))
			if rec.ReturnDate != nil {
				fmt.Fprintf(w, "  Returned:  %s\n", whenLabel(rec.ReturnDate))
			}
			if rec.IsCancellable() {
				fmt.Fprintf(w, "\nRun 'libra cancel %d' to withdraw this request.\n", rec.ID)
			}
			return nil
		}),
	}
}
