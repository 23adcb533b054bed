package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stemsi/elearn-backend/internal/i18n"
	"github.com/stemsi/elearn-backend/internal/store"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List practice attempts recorded in the local database",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().String("db", "practice.db", "SQLite database path")
	cmd.Flags().IntP("limit", "n", 20, "Maximum attempts to show (0 = all)")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	cfg, _ := loadConfig(v)
	if err := i18n.Init(cfg.DefaultLang); err != nil {
		return err
	}
	ctx := i18n.WithLocalizer(context.Background(), i18n.NewLocalizer(cfg.DefaultLang))

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	attempts, err := db.ListAttempts(ctx, v.GetInt("limit"))
	if err != nil {
		return fmt.Errorf("list attempts: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(attempts) == 0 {
		fmt.Fprintln(out, i18n.T(ctx, "PracticeNoHistory"))
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPLETED\tEXAM\tSCORE\tCORRECT\tPASSED\tTIMED OUT")
	for _, a := range attempts {
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%d/%d\t%t\t%t\n",
			a.CompletedAt.Local().Format("2006-01-02 15:04"), a.ExamTitle,
			a.ScorePercent, a.CorrectCount, a.TotalQuestions, a.Passed, a.AutoFinalized)
	}
	return tw.Flush()
}
