package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "nyay",
	Short:         "Indian case-law research: precedent search, legal chat, and document analysis",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable coloured output")

	rootCmd.AddCommand(serveCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, healthCmd)
	rootCmd.AddCommand(searchCmd, precedentCmd, favoriteCmd, favoritesCmd, courtsCmd, recentCmd)
	rootCmd.AddCommand(chatCmd, sessionsCmd)
	rootCmd.AddCommand(uploadCmd, jobsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
