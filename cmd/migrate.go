package cmd

import (
	"fmt"

	"mod-catalog/db"
	"mod-catalog/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(configPath) // Opening the database migrates it
		defer a.close()
		fmt.Printf("Schema is up to date (%s)\n", a.cfg.DatabaseDriver)
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage catalog accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add [username]",
	Short: "Create an account",
	Long: `Create an account with optional roles.
Example: mod-catalog user add alice --role admin --role BeatSaber:approver

A bare role is granted sitewide; <game>:<role> grants it for one game.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rawRoles, _ := cmd.Flags().GetStringArray("role")
		roles, err := parseRoles(rawRoles)
		if err != nil {
			exit("Invalid role", err)
		}

		a := bootstrap(configPath)
		defer a.close()
		user := &db.User{Username: args[0], Roles: roles}
		if err := a.store.CreateUser(cmd.Context(), user); err != nil {
			a.fail("Failed to create user", err)
		}
		logger.Log.Infow("User created", zap.String("username", user.Username), zap.Uint("id", user.ID))
		fmt.Printf("Created user %s (id %d)\n", user.Username, user.ID)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userAddCmd.Flags().StringArray("role", nil, "role to grant, sitewide or as <game>:<role> (repeatable)")
}
