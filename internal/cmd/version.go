package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

var (
	extended    bool
	versionJSON bool
)

type versionReport struct {
	Binary    string `json:"binary"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go,omitempty"`
	Gofulmen  string `json:"gofulmen,omitempty"`
	Crucible  string `json:"crucible,omitempty"`
}

func buildVersionReport(binary string, full bool) versionReport {
	report := versionReport{Binary: binary, Version: versionInfo.Version}
	if !full {
		return report
	}
	report.Commit = versionInfo.Commit
	report.BuildDate = versionInfo.BuildDate
	report.Go = runtime.Version()
	v := crucible.GetVersion()
	report.Gofulmen = v.Gofulmen
	report.Crucible = v.Crucible
	return report
}

func (r versionReport) write(w io.Writer, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(w, "%s %s\n", r.Binary, r.Version)
	if r.Go == "" {
		return nil
	}
	fmt.Fprintf(w, "Commit: %s\nBuilt: %s\nGo: %s\n\n", r.Commit, r.BuildDate, r.Go)
	_, err := fmt.Fprintf(w, "Gofulmen: %s\nCrucible: %s\n", r.Gofulmen, r.Crucible)
	return err
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for build, Go, Gofulmen and Crucible versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		report := buildVersionReport(GetAppIdentity().BinaryName, extended || versionJSON)
		return report.write(cmd.OutOrStdout(), versionJSON)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print extended version information as JSON")
}
