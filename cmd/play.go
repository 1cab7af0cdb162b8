package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/b2english/tensequest/internal/practice"
	"github.com/b2english/tensequest/internal/session"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start or resume a practice session",
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().String("mode", "classic", "Run mode: classic or millionaire")
	playCmd.Flags().Bool("daily", false, "Play today's daily mission")
	playCmd.Flags().Bool("new", false, "Abandon a saved run and start over")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	modeVal, _ := cmd.Flags().GetString("mode")
	daily, _ := cmd.Flags().GetBool("daily")
	fresh, _ := cmd.Flags().GetBool("new")

	mode, err := session.ParseMode(modeVal)
	if err != nil {
		return err
	}
	if mode == session.ModeFocus {
		return errors.New("use the focus command for focus practice")
	}

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if a.offline {
		fmt.Fprintln(out, "Offline: practicing with the built-in question bank.")
	}

	if resumable(a.ctrl.Snapshot()) && !fresh {
		fmt.Fprintln(out, "Resuming your saved run.")
	} else {
		if _, err := a.ctrl.StartSession(ctx, mode, daily); err != nil {
			if errors.Is(err, practice.ErrDailyLocked) {
				fmt.Fprintln(out, "You already completed today's mission. Try a free run!")
				return nil
			}
			return fmt.Errorf("start session: %w", err)
		}
	}

	return runConsole(ctx, a.ctrl, cmd.InOrStdin(), out)
}

// resumable reports whether a saved run is still in progress.
func resumable(s session.Snapshot) bool {
	return s.State == session.StateRunning || s.State == session.StateFeedback
}
