package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"order_reminder_service/internal/domain/reminder"
	"order_reminder_service/internal/infra/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := database.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", n)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert default order types, interval rules and email templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer db.Close()
			res, err := database.Seed(cmd.Context(), db)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d order type(s), %d interval rule(s), %d template(s).\n", res.OrderTypes, res.Rules, res.Templates)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one dispatch sweep and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *application) error {
				res, err := a.sweep.Run(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), res)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"Total", "Sent", "Failed", "Cancelled", "Skipped"})
				tw.AppendRow(table.Row{res.Total, res.Sent, res.Failed, res.Cancelled, res.Skipped})
				tw.Render()
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show reminder counts, due reminders and active interval rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *application) error {
				st, err := a.admin.Status(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), st)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.SetTitle("Reminders at " + st.GeneratedAt.UTC().Format(time.RFC3339))
				tw.AppendHeader(table.Row{"Status", "Count"})
				for _, s := range reminder.Statuses {
					tw.AppendRow(table.Row{s, st.Counts[s]})
				}
				tw.AppendFooter(table.Row{"Due now", st.Due})
				tw.AppendFooter(table.Row{"Active rules", st.ActiveRules})
				tw.Render()
				return nil
			})
		},
	}
}

func intervalsCmd() *cobra.Command {
	intervals := &cobra.Command{Use: "intervals", Short: "Inspect interval rules"}
	var includeDeleted bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List interval rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *application) error {
				rules, err := a.catalog.List(ctx, includeDeleted)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), rules)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "Name", "Type", "Days", "Order types", "Default", "State", "Sort"})
				for _, r := range rules {
					codes := "all"
					if len(r.OrderTypeCodes) > 0 {
						codes = fmt.Sprint(r.OrderTypeCodes)
					}
					tw.AppendRow(table.Row{r.ID, r.Name, r.Direction, r.Days, codes, r.IsDefault, r.State(), r.SortOrder})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().BoolVar(&includeDeleted, "include-deleted", false, "include soft-deleted rules")
	intervals.AddCommand(list)
	return intervals
}

func remindersCmd() *cobra.Command {
	reminders := &cobra.Command{Use: "reminders", Short: "Inspect reminders"}
	var (
		status  string
		orderID int64
		limit   int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *application) error {
				rs, err := a.lifecycle.List(ctx, reminder.ListFilter{
					OrderID: orderID,
					Status:  reminder.Status(status),
					Limit:   limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), rs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "Order", "Scheduled", "Status", "Recipient", "Lang", "Subject", "Error"})
				for _, r := range rs {
					tw.AppendRow(table.Row{
						r.ID, r.OrderID, r.ScheduledAt.UTC().Format(time.RFC3339), r.Status,
						r.Recipient, r.LanguageCode, r.Subject, r.ErrorMessage.String,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "status filter (pending, sent, failed, cancelled)")
	list.Flags().Int64Var(&orderID, "order", 0, "order id filter")
	list.Flags().IntVar(&limit, "limit", 100, "maximum rows")
	reminders.AddCommand(list)
	return reminders
}
