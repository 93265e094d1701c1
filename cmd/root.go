package cmd

import (
	"github.com/spf13/cobra"

	"github.com/codetutor/codetutor/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "codetutor",
	Short: "AI coding tutor backend",
	Long:  "Codetutor — backend for a notebook-embedded AI coding tutor with hint escalation and level adaptation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides CODETUTOR_DB env var)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(anchorsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest
// priority), then CODETUTOR_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}
