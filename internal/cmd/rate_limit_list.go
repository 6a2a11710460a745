package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/namelens/edgegate/internal/core/ratelimit"
	"github.com/namelens/edgegate/internal/core/edge"
	"github.com/namelens/edgegate/internal/core/store"
	"github.com/namelens/edgegate/internal/output"
)

var (
	rateLimitListOutput outputFlags
	rateLimitListAll    bool
	rateLimitListKey    string
	rateLimitListPrefix string
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitListOutput.format)
		if err != nil {
			return err
		}
		target, err := rateLimitListOutput.target()
		if err != nil {
			return err
		}

		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.RateLimitQuery{
			All:    rateLimitListAll,
			Key:    edge.CanonicalClientKey(rateLimitListKey),
			Prefix: strings.TrimSpace(rateLimitListPrefix),
		}
		if query.Validate() != nil {
			query.All = true
		}

		entries, err := db.ListRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}

		policy := ratelimit.Policy{
			Limit:  cfg.Edge.RateLimit.Limit,
			Window: cfg.Edge.RateLimit.Window,
			Strict: cfg.Edge.RateLimit.Strict,
		}
		rendered, err := output.FormatRateLimits(format, output.NewRateLimitRows(entries, policy, time.Now().UTC()))
		if err != nil {
			return err
		}

		return target.writeRendered("rate-limit.list", format, rendered)
	},
}

func init() {
	rateLimitListOutput.bind(rateLimitListCmd, "table|json|markdown")
	rateLimitListCmd.Flags().BoolVar(&rateLimitListAll, "all", false, "List all client windows (default when no filter is given)")
	rateLimitListCmd.Flags().StringVar(&rateLimitListKey, "key", "", "List a single client key (exact match)")
	rateLimitListCmd.Flags().StringVar(&rateLimitListPrefix, "prefix", "", "List client keys with matching prefix")
}
