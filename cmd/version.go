package cmd

import (
	"fmt"

	"mod-catalog/db"
	"mod-catalog/engine"
	"mod-catalog/logger"
	"mod-catalog/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Upload, list and edit versions",
}

var versionCreateCmd = &cobra.Command{
	Use:   "create [projectId] [archive.zip]",
	Short: "Upload a private version of a project",
	Long: `Upload a private version of a project.
Example: mod-catalog version create 3 ./Foo-1.2.0.zip --version 1.2.0 --platform steampc \
  --game-versions 1,2 --dep 7:^1.0.0

The archive is copied into the storage directory under its sha1.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		modVersion, _ := flags.GetString("version")
		rawPlatform, _ := flags.GetString("platform")
		rawGameVersions, _ := flags.GetString("game-versions")
		rawDeps, _ := flags.GetStringArray("dep")

		projectID, err := parseID(args[0])
		if err != nil {
			exit("Invalid project id", err)
		}
		platform, err := db.ParsePlatform(rawPlatform)
		if err != nil {
			exit("Invalid platform", err)
		}
		gameVersions, err := parseIDs(rawGameVersions)
		if err != nil {
			exit("Invalid game version list", err)
		}
		deps, err := parseDependencies(rawDeps)
		if err != nil {
			exit("Invalid dependency", err)
		}

		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		actor := a.actor(ctx)

		hash, size, err := a.files.Put(ctx, args[1])
		if err != nil {
			a.fail("Failed to store archive", err)
		}
		logger.Log.Infow("Archive stored", zap.String("hash", hash), zap.Int64("size", size))

		v, err := a.engine.CreateVersion(ctx, engine.NewVersion{
			ProjectID:               projectID,
			ModVersion:              modVersion,
			Platform:                platform,
			SupportedGameVersionIDs: gameVersions,
			Dependencies:            deps,
			ZipHash:                 hash,
			FileSize:                size,
		}, actor)
		if err != nil {
			a.fail("Failed to create version", err)
		}
		fmt.Printf("Created version %s (id %d) %s\n", v.ModVersion, v.ID, ui.Status(v.Status))
		for _, d := range v.Dependencies {
			fmt.Printf("  depends on project %d %s (recorded version %d)\n", d.ParentProjectID, d.VersionRange, d.VersionID)
		}
	},
}

var versionListCmd = &cobra.Command{
	Use:   "list [projectId]",
	Short: "List a project's versions",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectID, err := parseID(args[0])
		if err != nil {
			exit("Invalid project id", err)
		}
		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		var actor *db.User
		if actingUser != "" {
			actor = a.actor(ctx)
		}

		versions, err := a.store.ListProjectVersions(ctx, projectID)
		if err != nil {
			a.fail("Failed to list versions", err)
		}
		for i := range versions {
			v := &versions[i]
			ok, err := a.engine.CanView(ctx, actor, engine.VersionTarget(v))
			if err != nil {
				a.fail("Failed to check permissions", err)
			}
			if !ok {
				continue
			}
			fmt.Printf("#%d %-12s %-15s %s\n", v.ID, v.ModVersion, v.Platform, ui.Status(v.Status))
		}
	},
}

var versionEditCmd = &cobra.Command{
	Use:   "edit [versionId]",
	Short: "Propose a change to a version",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		edit := &db.VersionEdit{}
		edit.ModVersion, _ = flags.GetString("version")
		rawPlatform, _ := flags.GetString("platform")
		rawGameVersions, _ := flags.GetString("game-versions")
		rawDeps, _ := flags.GetStringArray("dep")

		if rawPlatform != "" {
			platform, err := db.ParsePlatform(rawPlatform)
			if err != nil {
				exit("Invalid platform", err)
			}
			edit.Platform = platform
		}
		gameVersions, err := parseIDs(rawGameVersions)
		if err != nil {
			exit("Invalid game version list", err)
		}
		edit.SupportedGameVersionIDs = gameVersions
		if edit.Dependencies, err = parseDependencies(rawDeps); err != nil {
			exit("Invalid dependency", err)
		}

		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		res, err := a.engine.SubmitEdit(ctx, a.target(ctx, string(engine.KindVersion), args[0]), engine.EditFields{Version: edit}, a.actor(ctx))
		if err != nil {
			a.fail("Failed to edit version", err)
		}
		printEditResult(res)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.AddCommand(versionCreateCmd, versionListCmd, versionEditCmd)

	versionCreateCmd.Flags().String("version", "", "semantic version of the release")
	versionCreateCmd.Flags().String("platform", string(db.PlatformUniversalPC), "build platform")
	versionCreateCmd.Flags().String("game-versions", "", "comma-separated supported game version ids")
	versionCreateCmd.Flags().StringArray("dep", nil, "dependency as <projectId>:<range> (repeatable)")
	_ = versionCreateCmd.MarkFlagRequired("version")
	_ = versionCreateCmd.MarkFlagRequired("game-versions")

	versionEditCmd.Flags().String("version", "", "new semantic version")
	versionEditCmd.Flags().String("platform", "", "new build platform")
	versionEditCmd.Flags().String("game-versions", "", "comma-separated supported game version ids")
	versionEditCmd.Flags().StringArray("dep", nil, "dependency as <projectId>:<range> (repeatable)")
}
