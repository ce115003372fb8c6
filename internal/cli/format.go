package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/me/libra/pkg/libraryapi"
	"github.com/me/libra/pkg/model"
)

// ErrorMessage renders a command error for the terminal.
func ErrorMessage(err error) string {
	return libraryapi.UserMessage(err)
}

// dueLabel renders a due date with a relative hint, e.g.
// "2026-03-24 (2 weeks from now)".
func dueLabel(d *model.Date, now time.Time) string {
	if d == nil || d.IsZero() {
		return "-"
	}
	today := model.DateOf(now)
	if d.Equal(today) {
		return d.String() + " (today)"
	}
	return fmt.Sprintf("%s (%s)", d, humanize.RelTime(d.Time(time.Local), today.Time(time.Local), "ago", "from now"))
}

// whenLabel renders a timestamp relative to now.
func whenLabel(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return humanize.Time(*t)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printBooks(w io.Writer, books []model.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	fmt.Fprintf(w, "%-6s  %-36s  %-24s  %s\n", "ID", "TITLE", "AUTHOR", "AVAILABILITY")
	fmt.Fprintf(w, "%-6s  %-36s  %-24s  %s\n", "--", "-----", "------", "------------")
	for _, b := range books {
		title := b.Title
		if b.IsFavorite {
			title = "* " + title
		}
		fmt.Fprintf(w, "%-6d  %-36s  %-24s  %s\n", b.ID, truncate(title, 36), truncate(b.AuthorNames(), 24), b.AvailabilityLabel())
	}
}

func printBorrowings(w io.Writer, records []model.Borrowing, now time.Time) {
	fmt.Fprintf(w, "%-6s  %-32s  %-15s  %s\n", "ID", "BOOK", "STATUS", "DUE")
	fmt.Fprintf(w, "%-6s  %-32s  %-15s  %s\n", "--", "----", "------", "---")
	for _, r := range records {
		title := fmt.Sprintf("book #%d", r.BookRef())
		if b := r.ResolvedBook(); b != nil {
			title = b.Title
		}
		fmt.Fprintf(w, "%-6d  %-32s  %-15s  %s\n", r.ID, truncate(title, 32), r.Status.Label(), dueLabel(r.DueDate, now))
	}
}
