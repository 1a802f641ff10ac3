package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "saractl",
	Short: "Operate a saraAuth deployment",
	Long: `saractl generates key material and issues, inspects and revokes bearer
tokens against the stores named in a saraAuth YAML config.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sara.yaml", "path to the saraAuth config file")
}
