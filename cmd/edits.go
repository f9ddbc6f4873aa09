package cmd

import (
	"fmt"
	"strings"

	"mod-catalog/db"

	"github.com/spf13/cobra"
)

var editsCmd = &cobra.Command{
	Use:   "edits",
	Short: "Review the edit queue",
}

var editsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending edits",
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(configPath)
		defer a.close()
		edits, err := a.cache.Edits(cmd.Context())
		if err != nil {
			a.fail("Failed to list edits", err)
		}
		pending := pendingOnly(edits)
		for _, e := range pending {
			fmt.Printf("#%d %s %d by user %d: %s\n", e.ID, e.ObjectTableName, e.ObjectID, e.SubmitterID, describeEdit(e))
		}
		fmt.Printf("%d pending edit(s)\n", len(pending))
	},
}

var editsApproveCmd = &cobra.Command{
	Use:   "approve [editId]",
	Short: "Apply a pending edit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resolveEdit(cmd, args[0], true)
	},
}

var editsDenyCmd = &cobra.Command{
	Use:   "deny [editId]",
	Short: "Reject a pending edit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resolveEdit(cmd, args[0], false)
	},
}

func resolveEdit(cmd *cobra.Command, rawID string, accept bool) {
	id, err := parseID(rawID)
	if err != nil {
		exit("Invalid edit id", err)
	}
	a := bootstrap(configPath)
	defer a.close()
	ctx := cmd.Context()
	if _, err := a.engine.ResolveEdit(ctx, id, a.actor(ctx), accept); err != nil {
		a.fail("Failed to resolve edit", err)
	}
	verb := "denied"
	if accept {
		verb = "approved"
	}
	fmt.Printf("Edit %d %s\n", id, verb)
}

// describeEdit lists the fields an entry proposes to change.
func describeEdit(e db.EditQueue) string {
	var fields []string
	if p := e.ProjectEdit; p != nil {
		add := func(name, value string) {
			if value != "" {
				fields = append(fields, fmt.Sprintf("%s=%q", name, value))
			}
		}
		add("name", p.Name)
		add("summary", p.Summary)
		add("description", p.Description)
		add("category", p.Category)
		add("gitUrl", p.GitURL)
		add("icon", p.IconFileName)
		if len(p.AuthorIDs) > 0 {
			fields = append(fields, fmt.Sprintf("authors=%v", p.AuthorIDs))
		}
	}
	if v := e.VersionEdit; v != nil {
		if v.ModVersion != "" {
			fields = append(fields, "version="+v.ModVersion)
		}
		if v.Platform != "" {
			fields = append(fields, "platform="+string(v.Platform))
		}
		if len(v.SupportedGameVersionIDs) > 0 {
			fields = append(fields, fmt.Sprintf("gameVersions=%v", v.SupportedGameVersionIDs))
		}
		for _, d := range v.Dependencies {
			fields = append(fields, fmt.Sprintf("dep=%d:%s", d.ParentProjectID, d.VersionRange))
		}
	}
	if len(fields) == 0 {
		return "(no changes)"
	}
	return strings.Join(fields, " ")
}

func init() {
	rootCmd.AddCommand(editsCmd)
	editsCmd.AddCommand(editsListCmd, editsApproveCmd, editsDenyCmd)
}
