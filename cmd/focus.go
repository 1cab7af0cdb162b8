package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/b2english/tensequest/internal/content"
	"github.com/b2english/tensequest/internal/practice"
)

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Drill one tense with the built-in question bank",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		topic, _ := cmd.Flags().GetString("topic")
		count, _ := cmd.Flags().GetInt("count")

		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if count <= 0 {
			count = a.cfg.Practice.FocusCount
		}
		if _, err := a.ctrl.StartFocus(ctx, topic, count); err != nil {
			if errors.Is(err, practice.ErrUnknownTopic) {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(content.Topics(), ", "))
			}
			return err
		}
		return runConsole(ctx, a.ctrl, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	focusCmd.Flags().String("topic", content.TopicPresentSimple, "Tense to practice")
	focusCmd.Flags().Int("count", 0, "Number of questions (default from practice.focus_count)")
}
