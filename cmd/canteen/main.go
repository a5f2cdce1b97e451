// Command canteen runs the API server, its maintenance jobs and the
// terminal clients.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusbite/canteen/config"
	"github.com/campusbite/canteen/pkg/logger"

	// Registration side effects.
	_ "github.com/campusbite/canteen/database/migrations"
	_ "github.com/campusbite/canteen/database/seeders"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "canteen",
	Short:         "Campus canteen ordering backend and tools",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		logger.Setup()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	// Jobs
	rootCmd.AddCommand(scheduleRunCmd)
	rootCmd.AddCommand(notificationsPruneCmd)
	rootCmd.AddCommand(scheduleListCmd)
	rootCmd.AddCommand(tokensResetCmd)
	rootCmd.AddCommand(purgePlaceholdersCmd)
	rootCmd.AddCommand(translateCmd)

	// Clients
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(watchOrdersCmd)
	rootCmd.AddCommand(watchShopsCmd)
	rootCmd.AddCommand(orderStatusCmd)
	rootCmd.AddCommand(notificationsCmd)
}
