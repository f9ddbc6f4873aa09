package cmd

import (
	"fmt"

	"mod-catalog/db"
	"mod-catalog/engine"
	"mod-catalog/ui"

	"github.com/spf13/cobra"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Check dependencies against the live catalog",
}

var depsResolveCmd = &cobra.Command{
	Use:   "resolve [versionId]",
	Short: "Resolve a version's dependencies for a game version",
	Long: `Resolve a version's dependencies for a game version.
Example: mod-catalog deps resolve 12 --game-version 3 --status verified,unverified`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		gameVersion, statuses := depsFlags(cmd)
		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		t := a.target(ctx, string(engine.KindVersion), args[0])

		res, err := a.engine.ResolveDependencies(ctx, *t.Version, gameVersion, statuses)
		if err != nil {
			a.fail("Failed to resolve dependencies", err)
		}
		printResolution(res)
	},
}

var depsLatestCmd = &cobra.Command{
	Use:   "latest [projectId]",
	Short: "Show the newest version of a project for a game version",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		gameVersion, statuses := depsFlags(cmd)
		rawPlatform, _ := cmd.Flags().GetString("platform")
		var platform db.Platform
		if rawPlatform != "" {
			p, err := db.ParsePlatform(rawPlatform)
			if err != nil {
				exit("Invalid platform", err)
			}
			platform = p
		}
		projectID, err := parseID(args[0])
		if err != nil {
			exit("Invalid project id", err)
		}

		a := bootstrap(configPath)
		defer a.close()
		v, err := a.engine.GetLatestVersion(cmd.Context(), projectID, gameVersion, platform, statuses)
		if err != nil {
			a.fail("No matching version", err)
		}
		fmt.Printf("#%d %s %s %s\n", v.ID, v.ModVersion, v.Platform, ui.Status(v.Status))
	},
}

var depsSuccessorCmd = &cobra.Command{
	Use:   "successor [originalVersionId] [candidateVersionId]",
	Short: "Check whether a newer version can stand in for a dependency",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		gameVersion, _ := depsFlags(cmd)
		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		original := a.target(ctx, string(engine.KindVersion), args[0])
		candidate := a.target(ctx, string(engine.KindVersion), args[1])

		ok, err := a.engine.IsValidDependencySuccessor(ctx, *original.Version, *candidate.Version, gameVersion)
		if err != nil {
			a.fail("Failed to compare versions", err)
		}
		if ok {
			fmt.Printf("%s can replace %s\n", candidate.Version.ModVersion, original.Version.ModVersion)
			return
		}
		fmt.Printf("%s cannot replace %s\n", candidate.Version.ModVersion, original.Version.ModVersion)
	},
}

func depsFlags(cmd *cobra.Command) (uint, []db.Status) {
	rawGameVersion, _ := cmd.Flags().GetString("game-version")
	gameVersion, err := parseID(rawGameVersion)
	if err != nil {
		exit("Invalid game version id", err)
	}
	rawStatuses, _ := cmd.Flags().GetString("status")
	statuses, err := parseStatuses(rawStatuses)
	if err != nil {
		exit("Invalid status list", err)
	}
	return gameVersion, statuses
}

func printResolution(res engine.DependencyResolution) {
	mode := "live"
	if !res.Live {
		mode = "fallback (recorded versions)"
	}
	fmt.Printf("Resolution: %s\n", mode)
	for _, d := range res.Dependencies {
		if d.Available {
			fmt.Printf("  project %d %s: available as version %d\n", d.ParentProjectID, d.VersionRange, d.NewerDependencyID)
			continue
		}
		fmt.Printf("  project %d %s: unavailable (%s)\n", d.ParentProjectID, d.VersionRange, d.Reason)
	}
	for _, v := range res.Fallback {
		fmt.Printf("  recorded: #%d %s %s\n", v.ID, v.ModVersion, ui.Status(v.Status))
	}
}

func init() {
	rootCmd.AddCommand(depsCmd)
	depsCmd.AddCommand(depsResolveCmd, depsLatestCmd, depsSuccessorCmd)
	for _, c := range []*cobra.Command{depsResolveCmd, depsLatestCmd, depsSuccessorCmd} {
		c.Flags().String("game-version", "", "game version id")
		_ = c.MarkFlagRequired("game-version")
	}
	for _, c := range []*cobra.Command{depsResolveCmd, depsLatestCmd} {
		c.Flags().String("status", "", "comma-separated accepted statuses (default verified,unverified)")
	}
	depsLatestCmd.Flags().String("platform", "", "build platform (default any)")
}
