package cmd

import (
	"fmt"

	"mod-catalog/db"
	"mod-catalog/ui"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [project|version] [id] [status]",
	Short: "Move a project or version to a moderation status",
	Long: `Move a project or version to a moderation status.
Example: mod-catalog status version 12 verified --reason "looks good"

Statuses: private, pending, unverified, verified, removed.
Removed objects must be brought back with restore.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		to, err := db.ParseStatus(args[2])
		if err != nil {
			exit("Invalid status", err)
		}
		reason, _ := cmd.Flags().GetString("reason")

		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		t := a.target(ctx, args[0], args[1])
		from := t.Status()
		if err := a.engine.Moderate(ctx, t, to, a.actor(ctx), reason); err != nil {
			a.fail("Failed to change status", err)
		}
		fmt.Printf("%s %d: %s -> %s\n", t.Kind(), t.ID(), ui.Status(from), ui.Status(t.Status()))
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit [project|version] [id]",
	Short: "Submit a private project or version for approval",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		t := a.target(ctx, args[0], args[1])
		if err := a.engine.SubmitForApproval(ctx, t, a.actor(ctx)); err != nil {
			a.fail("Failed to submit", err)
		}
		fmt.Printf("%s %d is now %s\n", t.Kind(), t.ID(), ui.Status(t.Status()))
	},
}

// restoreCmd brings a removed object back to pending
var restoreCmd = &cobra.Command{
	Use:   "restore [project|version] [id]",
	Short: "Restore a removed project or version",
	Long: `Restore a removed project or version to pending.
Example: mod-catalog restore version 12

A version can only be restored while its archive is still in storage.
Restoring a version of a removed project restores the project too.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")
		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		t := a.target(ctx, args[0], args[1])

		ok, err := a.engine.IsRestorable(ctx, t)
		if err != nil {
			a.fail("Failed to check restore eligibility", err)
		}
		if !ok {
			a.fail("Not restorable", fmt.Errorf("%s %d is %s or its archive is gone", t.Kind(), t.ID(), t.Status()))
		}
		if err := a.engine.Restore(ctx, t, a.actor(ctx), reason); err != nil {
			a.fail("Failed to restore", err)
		}
		fmt.Printf("Successfully restored %s %d to %s\n", t.Kind(), t.ID(), ui.Status(t.Status()))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, submitCmd, restoreCmd)
	statusCmd.Flags().String("reason", "", "reason recorded in the status history")
	restoreCmd.Flags().String("reason", "", "reason recorded in the status history")
}
