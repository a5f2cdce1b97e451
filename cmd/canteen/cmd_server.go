package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/campusbite/canteen/database/migrations"
	"github.com/campusbite/canteen/internal/kernel"
	"github.com/campusbite/canteen/internal/server"
	"github.com/campusbite/canteen/pkg/database"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// canteen serve
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start the HTTP, websocket and gRPC servers with the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		return server.Serve(ctx)
	},
}

// canteen route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List every registered route",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Routes don't depend on data; an empty in-memory database is enough
		// to build the kernel.
		db, err := database.Open("sqlite", "file::memory:")
		if err != nil {
			return err
		}
		defer database.Close(db)
		if err := db.AutoMigrate(migrations.Models()...); err != nil {
			return err
		}
		k, err := kernel.New(kernel.Deps{DB: db})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, r := range k.Routes() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Method, r.Path, r.Name)
		}
		return w.Flush()
	},
}
