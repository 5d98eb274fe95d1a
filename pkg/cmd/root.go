package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sysdiglabs/secure-inline-scan/pkg/etc"
)

func NewRootCmd(info etc.BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "inline-scan",
		Short:         "Analyze locally built container images and ship them to a remote scanning backend",
		Example:       "  inline-scan analyze -s https://secure.sysdig.com -k <token> myapp:latest",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", info.Version, info.Commit, info.Date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewAnalyzeCmd())
	return rootCmd
}
