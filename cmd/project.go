package cmd

import (
	"fmt"

	"mod-catalog/db"
	"mod-catalog/engine"
	"mod-catalog/ui"

	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create, list and edit projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a private project",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		game, _ := flags.GetString("game")
		category, _ := flags.GetString("category")
		summary, _ := flags.GetString("summary")
		description, _ := flags.GetString("description")
		gitURL, _ := flags.GetString("git")
		rawAuthors, _ := flags.GetString("authors")
		authors, err := parseIDs(rawAuthors)
		if err != nil {
			exit("Invalid author list", err)
		}

		a := bootstrap(configPath)
		defer a.close()
		p, err := a.engine.CreateProject(cmd.Context(), engine.NewProject{
			Name:        args[0],
			Summary:     summary,
			Description: description,
			GameName:    game,
			Category:    category,
			GitURL:      gitURL,
			AuthorIDs:   authors,
		}, a.actor(cmd.Context()))
		if err != nil {
			a.fail("Failed to create project", err)
		}
		fmt.Printf("Created project %s (id %d) %s\n", p.Name, p.ID, ui.Status(p.Status))
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects visible to the acting user",
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		var actor *db.User
		if actingUser != "" {
			actor = a.actor(ctx)
		}
		projects, err := a.cache.Projects(ctx)
		if err != nil {
			a.fail("Failed to list projects", err)
		}
		for i := range projects {
			p := &projects[i]
			ok, err := a.engine.CanView(ctx, actor, engine.ProjectTarget(p))
			if err != nil {
				a.fail("Failed to check permissions", err)
			}
			if !ok {
				continue
			}
			fmt.Printf("#%d %-30s %-12s %s\n", p.ID, p.Name, p.GameName, ui.Status(p.Status))
		}
	},
}

var projectEditCmd = &cobra.Command{
	Use:   "edit [projectId]",
	Short: "Propose a change to a project",
	Long: `Propose a change to a project. Only the given flags change.
Verified projects queue the change for review; others are updated in place.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		edit := &db.ProjectEdit{}
		edit.Name, _ = flags.GetString("name")
		edit.Summary, _ = flags.GetString("summary")
		edit.Description, _ = flags.GetString("description")
		edit.Category, _ = flags.GetString("category")
		edit.GitURL, _ = flags.GetString("git")
		rawAuthors, _ := flags.GetString("authors")
		authors, err := parseIDs(rawAuthors)
		if err != nil {
			exit("Invalid author list", err)
		}
		edit.AuthorIDs = authors

		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		res, err := a.engine.SubmitEdit(ctx, a.target(ctx, string(engine.KindProject), args[0]), engine.EditFields{Project: edit}, a.actor(ctx))
		if err != nil {
			a.fail("Failed to edit project", err)
		}
		printEditResult(res)
	},
}

func printEditResult(res engine.EditResult) {
	if res.Queued {
		fmt.Printf("Edit %d queued for review\n", res.Entry.ID)
		return
	}
	fmt.Println("Changes applied")
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectEditCmd)

	projectCreateCmd.Flags().String("game", "", "game the project belongs to")
	projectCreateCmd.Flags().String("category", "Other", "project category")
	projectCreateCmd.Flags().String("summary", "", "one-line summary")
	projectCreateCmd.Flags().String("description", "", "long description")
	projectCreateCmd.Flags().String("git", "", "source repository url")
	projectCreateCmd.Flags().String("authors", "", "comma-separated author ids (default: the acting user)")
	_ = projectCreateCmd.MarkFlagRequired("game")

	projectEditCmd.Flags().String("name", "", "new name")
	projectEditCmd.Flags().String("summary", "", "new summary")
	projectEditCmd.Flags().String("description", "", "new description")
	projectEditCmd.Flags().String("category", "", "new category")
	projectEditCmd.Flags().String("git", "", "new source repository url")
	projectEditCmd.Flags().String("authors", "", "comma-separated author ids")
}
