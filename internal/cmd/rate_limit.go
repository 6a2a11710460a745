package cmd

import "github.com/spf13/cobra"

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and reset shared rate limit windows",
	Long: `Inspect and reset the fixed-window counters kept by the "store" rate limit
backend. Windows held by the in-memory backend live only inside a running
server process and are not visible here.`,
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
