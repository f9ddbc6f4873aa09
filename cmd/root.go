package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	actingUser string
)

// rootCmd is the base command; without a subcommand it prints the catalog summary.
var rootCmd = &cobra.Command{
	Use:   "mod-catalog",
	Short: "Administer the mod catalog",
	Long: `Administer the mod catalog: submit projects and versions, move them
through moderation, review queued edits and check dependencies.

Configuration is read from a .env file in --config and the environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		summaryCmd.Run(summaryCmd, args)
	},
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing the .env file")
	rootCmd.PersistentFlags().StringVar(&actingUser, "as", "", "username or id of the acting user")
}
