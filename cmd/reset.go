package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/b2english/tensequest/internal/persist"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete progress, the saved run and the session log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		yes, _ := cmd.Flags().GetBool("yes")
		out := cmd.OutOrStdout()

		if !yes {
			fmt.Fprint(out, "This deletes all practice progress on this device. Continue? [y/N] ")
			sc := bufio.NewScanner(cmd.InOrStdin())
			if !sc.Scan() || !strings.EqualFold(strings.TrimSpace(sc.Text()), "y") {
				fmt.Fprintln(out, "Nothing deleted.")
				return nil
			}
		}

		a, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		a.progress.Reset(ctx)
		if err := persist.NewBridge(a.store.KV(), a.logger.Named("persist")).Clear(ctx); err != nil {
			return fmt.Errorf("clear saved run: %w", err)
		}
		if err := a.store.EventRepo().ClearSessionEvents(ctx); err != nil {
			return fmt.Errorf("clear session log: %w", err)
		}
		fmt.Fprintln(out, "Progress reset.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}
