// NavCompanion speaks obstacle alerts and turn-by-turn guidance for a
// walking navigation session.
//
// Usage:
//
//	navcompanion run [--api URL] [--room NAME]
//	navcompanion say TEXT [--high] [--flush]
//	navcompanion history [--limit N]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose  bool
	quiet    bool
	logFile  string
	apiURL   string
	room     string
	noSpeech bool
	journal  string

	sayHigh     bool
	sayFlush    bool
	historySize int
)

var rootCmd = &cobra.Command{
	Use:           "navcompanion",
	Short:         "Spoken guidance for assisted walking navigation",
	SilenceErrors: false,
	SilenceUsage:  true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the navigation API and speak guidance until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runGuidance,
}

var sayCmd = &cobra.Command{
	Use:   "say TEXT...",
	Short: "Speak one announcement and wait for it to finish",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSay,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recently recorded announcements",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable verbose/debug logging")
	pf.BoolVarP(&quiet, "quiet", "q", false, "disable all logging")
	pf.StringVar(&logFile, "log-file", "", "file to write logs to (default stderr)")
	pf.StringVar(&apiURL, "api", "", "navigation API base URL (overrides NAV_API_BASE_URL)")
	pf.StringVar(&room, "room", "", "navigation room (overrides NAV_ROOM)")
	pf.BoolVar(&noSpeech, "no-speech", false, "log announcements instead of speaking them")
	pf.StringVar(&journal, "journal", "", "SQLite journal path (overrides NAV_JOURNAL_PATH)")

	sayCmd.Flags().BoolVar(&sayHigh, "high", false, "speak ahead of queued announcements")
	sayCmd.Flags().BoolVar(&sayFlush, "flush", false, "drop queued announcements first")
	historyCmd.Flags().IntVarP(&historySize, "limit", "n", 20, "number of entries to show")

	rootCmd.AddCommand(runCmd, sayCmd, historyCmd)
}
