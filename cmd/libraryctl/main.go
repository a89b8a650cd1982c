package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"library_catalog/pkg/catalog"
	"library_catalog/pkg/circulation"
	"library_catalog/pkg/config"
	"library_catalog/pkg/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var openDB = database.Open

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()
	if err := newRootCmd(cfg, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "libraryctl",
		Short:         "Operator commands for the library catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "database driver (postgres or sqlite)")
	root.PersistentFlags().StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "sqlite database file")

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := openDB(cfg); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Mark every reservation past its due date as overdue",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openDB(cfg)
				if err != nil {
					return err
				}
				n, err := circulation.NewService(db).MarkOverdue(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %d reservations overdue.\n", n)
				return nil
			},
		},
		&cobra.Command{
			Use:   "dashboard",
			Short: "Print the circulation summary",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openDB(cfg)
				if err != nil {
					return err
				}
				return printDashboard(cmd.Context(), cmd.OutOrStdout(), db)
			},
		},
		&cobra.Command{
			Use:   "lookup <isbn>",
			Short: "Look an ISBN up in Open Library",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				isbn := circulation.NormalizeISBN(args[0])
				if !circulation.ValidISBN(isbn) {
					return fmt.Errorf("invalid ISBN %q", args[0])
				}
				client := catalog.NewClient(cfg.OpenLibraryURL, catalog.WithTimeout(cfg.OpenLibraryTimeout))
				md, err := client.LookupByISBN(cmd.Context(), isbn)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if md == nil {
					fmt.Fprintf(w, "No Open Library record for %s.\n", isbn)
					return nil
				}
				fmt.Fprintf(w, "%-12s %s\n", "Title:", md.Title)
				fmt.Fprintf(w, "%-12s %s\n", "Authors:", strings.Join(md.Authors, ", "))
				fmt.Fprintf(w, "%-12s %d\n", "Year:", md.PublishYear)
				fmt.Fprintf(w, "%-12s %s\n", "Publisher:", md.Publisher)
				fmt.Fprintf(w, "%-12s %d\n", "Pages:", md.PageCount)
				fmt.Fprintf(w, "%-12s %s\n", "Subjects:", strings.Join(md.Subjects, ", "))
				fmt.Fprintf(w, "%-12s %s\n", "Cover:", md.CoverURL)
				return nil
			},
		},
	)
	return root
}

func printDashboard(ctx context.Context, w io.Writer, db *gorm.DB) error {
	sum, err := circulation.NewService(db).Dashboard(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Books:        %d (%d available)\n", sum.TotalBooks, sum.AvailableBooks)
	fmt.Fprintf(w, "Customers:    %d\n", sum.TotalCustomers)
	fmt.Fprintf(w, "Active loans: %d\n", sum.ActiveReservations)
	fmt.Fprintf(w, "Overdue:      %d\n", sum.OverdueReservations)
	if len(sum.UpcomingDue) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nDue soon:")
	fmt.Fprintf(w, "%-12s %-40s %-25s\n", "Due", "Title", "Customer")
	fmt.Fprintln(w, strings.Repeat("-", 79))
	for _, r := range sum.UpcomingDue {
		title, customer := "", ""
		if r.Book != nil {
			title = truncate(r.Book.Title, 40)
		}
		if r.Customer != nil {
			customer = truncate(r.Customer.FullName, 25)
		}
		fmt.Fprintf(w, "%-12s %-40s %-25s\n", r.DueDate.Format("2006-01-02"), title, customer)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
