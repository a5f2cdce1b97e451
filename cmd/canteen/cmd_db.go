package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusbite/canteen/database/seeders"
	"github.com/campusbite/canteen/pkg/database"
	"github.com/campusbite/canteen/pkg/migration"
)

func withDB(fn func() error) error {
	if err := database.Connect(); err != nil {
		return err
	}
	defer database.Close(database.DB)
	return fn()
}

// canteen migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func() error {
			n, err := migration.New(database.DB, os.Stdout).Run()
			if err != nil {
				return err
			}
			fmt.Printf("%d migration(s) applied\n", n)
			return nil
		})
	},
}

// canteen migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Roll back the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func() error {
			n, err := migration.New(database.DB, os.Stdout).Rollback()
			if err != nil {
				return err
			}
			fmt.Printf("%d migration(s) rolled back\n", n)
			return nil
		})
	},
}

// canteen migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func() error {
			return migration.New(database.DB, os.Stdout).Status()
		})
	},
}

// canteen seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with demo users and shops",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func() error {
			fmt.Println("Running seeders...")
			return seeders.RunAll(database.DB, os.Stdout)
		})
	},
}
