package cmd

import (
	"github.com/spf13/cobra"

	"github.com/b2english/tensequest/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "tensequest",
	Short: "Gamified English tense practice",
	Long: "TenseQuest turns English tense practice into short quests: classic runs,\n" +
		"a millionaire ladder with lifelines, and focus drills on one tense.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd, args)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides TENSEQUEST_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (default: $XDG_CONFIG_HOME/tensequest/config.yaml)")
	rootCmd.PersistentFlags().Bool("offline", false, "Practice against the built-in question bank instead of the backend")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(focusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then TENSEQUEST_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}
