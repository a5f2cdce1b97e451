package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/campusbite/canteen/config"
	"github.com/campusbite/canteen/internal/i18n"
	"github.com/campusbite/canteen/internal/server"
	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/schedule"
)

// canteen schedule:run
var scheduleRunCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Run the scheduler without the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		s := schedule.New()
		if err := a.Schedule(s); err != nil {
			return err
		}
		logger.Info("scheduler: started", "jobs", len(s.List()))
		s.Start(ctx)
		<-ctx.Done()
		s.Wait()
		return nil
	},
}

// canteen schedule:list
var scheduleListCmd = &cobra.Command{
	Use:   "schedule:list",
	Short: "List the recurring jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		s := schedule.New()
		if err := a.Schedule(s); err != nil {
			return err
		}
		for _, line := range s.List() {
			fmt.Println(line)
		}
		return nil
	},
}

var resetDate string

// canteen tokens:reset
var tokensResetCmd = &cobra.Command{
	Use:   "tokens:reset",
	Short: "Record each shop's highest token for a day, then zero the counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		tokens := a.Kernel.Services.Tokens
		date := resetDate
		if date == "" {
			date = tokens.Yesterday()
		}
		report, err := tokens.Reset(ctx, date)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d shop(s), %d recorded, %d reset\n",
			report.Date, report.Shops, report.Recorded, report.Reset)
		return nil
	},
}

// canteen notifications:prune
var notificationsPruneCmd = &cobra.Command{
	Use:   "notifications:prune",
	Short: "Delete read notifications older than NOTIFICATION_RETENTION",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Kernel.Services.Notifications.Prune(ctx, config.NotificationRetention())
		if err != nil {
			return err
		}
		fmt.Printf("%d notification(s) deleted\n", n)
		return nil
	},
}

var purgeDryRun bool

// canteen maintenance:purge-placeholders
var purgePlaceholdersCmd = &cobra.Command{
	Use:   "maintenance:purge-placeholders",
	Short: "Delete shops created with placeholder names",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		shops, err := a.Kernel.Services.Shops.PurgePlaceholders(ctx, purgeDryRun)
		if err != nil {
			return err
		}
		verb := "Deleted"
		if purgeDryRun {
			verb = "Would delete"
		}
		for _, s := range shops {
			fmt.Printf("%s %s (%s)\n", verb, s.Name, s.ID)
		}
		fmt.Printf("%d shop(s)\n", len(shops))
		return nil
	},
}

// canteen translate [lang]
var translateCmd = &cobra.Command{
	Use:   "translate [lang]",
	Short: "Machine-translate the source locale file into the other locales",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		key := config.TranslateAPIKey()
		if key == "" {
			return fmt.Errorf("translate: TRANSLATE_API_KEY is not set")
		}
		job := &i18n.Job{
			Dir:     config.LocalesDir(),
			Source:  config.Get("TRANSLATE_SOURCE", "en"),
			Skip:    splitList(config.Get("TRANSLATE_SKIP", "hi")),
			Locales: splitList(config.Get("LOCALES", "")),
			Translator: i18n.Google{
				URL: config.TranslateAPIURL(),
				Key: key,
			},
		}
		lang := ""
		if len(args) == 1 {
			lang = args[0]
		}

		results, err := job.Run(ctx, lang)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "LANG\tSTRINGS\tFAILED\tFILE")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", r.Lang, r.Strings, r.Failed, r.Path)
		}
		if ferr := w.Flush(); err == nil {
			err = ferr
		}
		return err
	},
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	tokensResetCmd.Flags().StringVar(&resetDate, "date", "", "business date to close, YYYY-MM-DD (default yesterday)")
	purgePlaceholdersCmd.Flags().BoolVar(&purgeDryRun, "dry-run", false, "list matching shops without deleting them")
}
