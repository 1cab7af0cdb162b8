package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/b2english/tensequest/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show practice statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		st := a.progress.Stats(ctx)
		weekly := a.progress.WeeklyStats(st)
		goal := a.progress.DailyGoal(st)

		fmt.Fprintf(out, "Sessions:     %d\n", st.Sessions)
		fmt.Fprintf(out, "Questions:    %d (%d correct, %d%%)\n", st.TotalQuestions, st.TotalCorrect, st.Accuracy())
		fmt.Fprintf(out, "Day streak:   %d\n", st.Streak)
		fmt.Fprintf(out, "Today:        %d/%d questions", goal.Answered, goal.Goal)
		if goal.Met {
			fmt.Fprint(out, " (goal met)")
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Last 7 days:  %d days, %d sessions, %d%% accuracy\n",
			weekly.DaysPracticed, weekly.TotalSessions, weekly.AvgAccuracy)

		events, err := a.store.EventRepo().QuerySessionEvents(ctx, store.QueryOpts{Limit: limit})
		if err != nil {
			return fmt.Errorf("query sessions: %w", err)
		}
		if len(events) == 0 {
			return nil
		}

		fmt.Fprintln(out)
		fmt.Fprintf(out, "%-19s  %-11s  %-5s  %7s  %5s  %6s\n", "Finished", "Mode", "Daily", "Correct", "XP", "Time")
		fmt.Fprintln(out, strings.Repeat("─", 64))
		for _, e := range events {
			daily := ""
			if e.Daily {
				daily = "yes"
			}
			fmt.Fprintf(out, "%-19s  %-11s  %-5s  %3d/%-3d  %5d  %5ds\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.Mode, daily, e.CorrectAnswers, e.QuestionsServed, e.XP, e.DurationSecs)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().IntP("limit", "n", 10, "Number of recent sessions to show")
}
