package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "thirtysix",
	Short: "thirtysix — a guided walk through the 36 questions",
	Long: `thirtysix serves the 36 questions experience: a web UI that walks a
pair of users through the question sequence one at a time, persists their
answers, and optionally lets a hosted model narrate the session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the thirtysix version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("thirtysix version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(answersCmd)
	rootCmd.AddCommand(interactionsCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
