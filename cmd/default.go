package cmd

import (
	"context"
	"fmt"

	"mod-catalog/db"
	"mod-catalog/ui"

	"github.com/spf13/cobra"
)

// summaryCmd is also what runs when no subcommand is given.
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show games, projects and pending edits",
	Long:  `Prints every game with its projects, their moderation status and the number of pending edits.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(configPath)
		defer a.close()
		printSummary(cmd.Context(), a)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func printSummary(ctx context.Context, a *app) {
	if ctx == nil {
		ctx = context.Background()
	}
	games, err := a.cache.Games(ctx)
	if err != nil {
		a.fail("Failed to load games", err)
	}
	projects, err := a.cache.Projects(ctx)
	if err != nil {
		a.fail("Failed to load projects", err)
	}
	edits, err := a.cache.Edits(ctx)
	if err != nil {
		a.fail("Failed to load edits", err)
	}

	pending := pendingCounts(edits)
	for _, g := range games {
		fmt.Println(ui.Bold(g.Name))
		for _, p := range projects {
			if p.GameName != g.Name {
				continue
			}
			line := fmt.Sprintf("  #%d %-30s %s", p.ID, p.Name, ui.Status(p.Status))
			if n := pending[db.PendingKeyFor(db.EditTableProjects, p.ID)]; n > 0 {
				line += fmt.Sprintf("  (%d pending edit)", n)
			}
			fmt.Println(line)
		}
	}
	fmt.Printf("%d games, %d projects, %d pending edits\n", len(games), len(projects), len(pendingOnly(edits)))
}

// pendingCounts counts unresolved edits per target key.
func pendingCounts(edits []db.EditQueue) map[string]int {
	counts := make(map[string]int)
	for _, e := range pendingOnly(edits) {
		counts[db.PendingKeyFor(e.ObjectTableName, e.ObjectID)]++
	}
	return counts
}

func pendingOnly(edits []db.EditQueue) []db.EditQueue {
	var out []db.EditQueue
	for _, e := range edits {
		if !e.Resolved() {
			out = append(out, e)
		}
	}
	return out
}
