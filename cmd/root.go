package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command all subcommands hang off.
var rootCmd = &cobra.Command{
	Use:   "fossmodmanager",
	Short: "Manage mods and skins for your game installation",
	Long: `fossmodmanager installs, enables, disables, and removes mods for a
game installation. Archive mods live under the game's reframework tree;
skin mods are kept as folders and copied into the game root on demand.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
