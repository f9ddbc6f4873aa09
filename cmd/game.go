package cmd

import (
	"fmt"
	"slices"
	"strings"

	"mod-catalog/db"
	"mod-catalog/semver"

	"github.com/spf13/cobra"
)

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Manage games, their versions, categories and webhooks",
}

var gameAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a game",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(configPath)
		defer a.close()
		g, err := a.engine.CreateGame(cmd.Context(), args[0], a.actor(cmd.Context()))
		if err != nil {
			a.fail("Failed to add game", err)
		}
		fmt.Printf("Added %s with categories %s\n", g.Name, strings.Join(g.Categories, ", "))
	},
}

var gameVersionCmd = &cobra.Command{
	Use:   "version [game] [version]",
	Short: "Register a game version",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(configPath)
		defer a.close()
		gv, err := a.engine.CreateGameVersion(cmd.Context(), args[0], args[1], a.actor(cmd.Context()))
		if err != nil {
			a.fail("Failed to add game version", err)
		}
		fmt.Printf("Added %s %s (id %d)\n", gv.GameName, gv.Version, gv.ID)
	},
}

var gameVersionsCmd = &cobra.Command{
	Use:   "versions [game]",
	Short: "List a game's versions and their compatibility links",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(configPath)
		defer a.close()
		all, err := a.cache.GameVersions(cmd.Context())
		if err != nil {
			a.fail("Failed to load game versions", err)
		}
		versions := gameVersionsOf(all, args[0])
		if len(versions) == 0 {
			fmt.Printf("%s has no versions\n", args[0])
			return
		}
		for _, gv := range versions {
			line := fmt.Sprintf("%4d  %s", gv.ID, gv.Version)
			if len(gv.LinkedVersionIDs) > 0 {
				line += fmt.Sprintf("  linked: %v", gv.LinkedVersionIDs)
			}
			fmt.Println(line)
		}
	},
}

// gameVersionsOf returns game's versions in ascending semantic order.
func gameVersionsOf(all []db.GameVersion, game string) []db.GameVersion {
	var out []db.GameVersion
	for _, gv := range all {
		if gv.GameName == game {
			out = append(out, gv)
		}
	}
	slices.SortStableFunc(out, func(a, b db.GameVersion) int {
		va, _ := semver.ParseVersion(a.Version)
		vb, _ := semver.ParseVersion(b.Version)
		if cmp := semver.Compare(va, vb); cmp != 0 {
			return cmp
		}
		return int(a.ID) - int(b.ID)
	})
	return out
}

var gameCategoryCmd = &cobra.Command{
	Use:   "category [add|remove] [game] [category]",
	Short: "Add or remove a project category",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		actor := a.actor(ctx)

		var err error
		switch args[0] {
		case "add":
			_, err = a.engine.AddCategory(ctx, args[1], args[2], actor)
		case "remove":
			_, err = a.engine.RemoveCategory(ctx, args[1], args[2], actor)
		default:
			err = fmt.Errorf("action must be add or remove, got %q", args[0])
		}
		if err != nil {
			a.fail("Failed to update categories", err)
		}
		fmt.Printf("Category %s: %s\n", args[0], args[2])
	},
}

var gameLinkCmd = &cobra.Command{
	Use:   "link [gameVersionId] [gameVersionId]",
	Short: "Mark two game versions as compatible",
	Long: `Mark two game versions of the same game as compatible. A mod version
supporting either one then counts as supporting both. Use --remove to unlink.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ids, err := parseIDs(args[0] + "," + args[1])
		if err != nil {
			exit("Invalid game version id", err)
		}
		remove, _ := cmd.Flags().GetBool("remove")

		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		if remove {
			err = a.engine.UnlinkGameVersions(ctx, ids[0], ids[1], a.actor(ctx))
		} else {
			err = a.engine.LinkGameVersions(ctx, ids[0], ids[1], a.actor(ctx))
		}
		if err != nil {
			a.fail("Failed to update game version links", err)
		}
		fmt.Println("Links updated")
	},
}

var gameWebhookCmd = &cobra.Command{
	Use:   "webhook [game] [url]",
	Short: "Subscribe a webhook to a game's events",
	Long: `Subscribe a webhook to a game's events.
Example: mod-catalog game webhook BeatSaber https://hooks.example/x --tag approved --tag removed

Without --tag the webhook receives every event.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		tags, _ := cmd.Flags().GetStringArray("tag")
		a := bootstrap(configPath)
		defer a.close()
		g, err := a.engine.AddWebhook(cmd.Context(), args[0], args[1], tags, a.actor(cmd.Context()))
		if err != nil {
			a.fail("Failed to add webhook", err)
		}
		fmt.Printf("%s now has %d webhook(s)\n", g.Name, len(g.Webhooks))
	},
}

func init() {
	rootCmd.AddCommand(gameCmd)
	gameCmd.AddCommand(gameAddCmd, gameVersionCmd, gameVersionsCmd, gameCategoryCmd, gameLinkCmd, gameWebhookCmd)
	gameLinkCmd.Flags().Bool("remove", false, "remove the link instead of adding it")
	gameWebhookCmd.Flags().StringArray("tag", nil, "event kind to deliver (repeatable)")
}
