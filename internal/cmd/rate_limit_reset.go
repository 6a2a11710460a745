package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/namelens/edgegate/internal/core/edge"
	"github.com/namelens/edgegate/internal/core/store"
	"github.com/namelens/edgegate/internal/output"
)

var (
	rateLimitResetAll    bool
	rateLimitResetKey    string
	rateLimitResetPrefix string
	rateLimitResetYes    bool
	rateLimitResetDryRun bool
	rateLimitResetOutput outputFlags
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored rate limit windows",
	Long: `Delete stored windows so the matching clients start a fresh window on
their next request. Use --key for one client, --prefix for a range of keys
(for example an address block), or --all with --yes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitResetOutput.format)
		if err != nil {
			return err
		}
		if format == output.FormatMarkdown {
			return fmt.Errorf("unsupported output format: %s", format)
		}
		target, err := rateLimitResetOutput.target()
		if err != nil {
			return err
		}

		query := store.RateLimitQuery{
			All:    rateLimitResetAll,
			Key:    edge.CanonicalClientKey(rateLimitResetKey),
			Prefix: strings.TrimSpace(rateLimitResetPrefix),
		}
		if err := query.Validate(); err != nil {
			return err
		}

		if query.All && !rateLimitResetYes && !rateLimitResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}

		sink, err := target.open("rate-limit.reset", format)
		if err != nil {
			return err
		}
		defer func() { _ = sink.Close() }()

		if rateLimitResetDryRun {
			return rateLimitResetResult{Matched: matched, DryRun: true}.write(sink, format)
		}

		deleted, err := db.ResetRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}

		return rateLimitResetResult{Matched: matched, Deleted: deleted}.write(sink, format)
	},
}

// rateLimitResetResult is the reset summary.
type rateLimitResetResult struct {
	Matched int   `json:"matched"`
	Deleted int64 `json:"deleted"`
	DryRun  bool  `json:"dry_run"`
}

func (r rateLimitResetResult) write(w io.Writer, format output.Format) error {
	if format == output.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	var err error
	if r.DryRun {
		_, err = fmt.Fprintf(w, "Would delete %d rate limit window(s)\n", r.Matched)
	} else {
		_, err = fmt.Fprintf(w, "Deleted %d/%d rate limit window(s)\n", r.Deleted, r.Matched)
	}
	return err
}

func init() {
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset all client windows")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetKey, "key", "", "Reset a single client key (exact match)")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetPrefix, "prefix", "", "Reset client keys with matching prefix")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be deleted")
	rateLimitResetOutput.bind(rateLimitResetCmd, "table|json")
}
