package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/namelens/edgegate/internal/core/store"
	"github.com/namelens/edgegate/internal/output"
)

var (
	contactsListOutput outputFlags
	contactsListSince  time.Duration
	contactsListEmail  string
	contactsListLimit  int
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Inspect stored contact form submissions",
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contact submissions, newest first",
	Long: `List submissions persisted by the contact endpoint. Requires contact.store
to have been enabled when the submissions were received.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(contactsListOutput.format)
		if err != nil {
			return err
		}
		target, err := contactsListOutput.target()
		if err != nil {
			return err
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.ContactQuery{
			Email: strings.TrimSpace(contactsListEmail),
			Limit: contactsListLimit,
		}
		if contactsListSince > 0 {
			query.Since = time.Now().UTC().Add(-contactsListSince)
		}

		subs, err := db.ListContactSubmissions(cmd.Context(), query)
		if err != nil {
			return err
		}

		rendered, err := output.FormatContacts(format, subs)
		if err != nil {
			return err
		}

		return target.writeRendered("contacts.list", format, rendered)
	},
}

func init() {
	contactsListOutput.bind(contactsListCmd, "table|json|markdown")
	contactsListCmd.Flags().DurationVar(&contactsListSince, "since", 0, "Only show submissions newer than this (e.g. 72h)")
	contactsListCmd.Flags().StringVar(&contactsListEmail, "email", "", "Only show submissions from this address")
	contactsListCmd.Flags().IntVar(&contactsListLimit, "limit", 50, "Maximum number of submissions")

	contactsCmd.AddCommand(contactsListCmd)
	rootCmd.AddCommand(contactsCmd)
}
