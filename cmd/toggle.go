package cmd

import (
	"context"
	"fmt"

	"fossmodmanager/logger"
	"fossmodmanager/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// enableCmd represents the enable command
var enableCmd = &cobra.Command{
	Use:   "enable <mod>",
	Short: "Enable a mod or skin",
	Long: `Enables the mod or skin with the given key. Archive mods are keyed by
their directory name, skins by their folder path; 'list' shows both.`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		runToggle(args[0], true)
	},
}

// disableCmd represents the disable command
var disableCmd = &cobra.Command{
	Use:   "disable <mod>",
	Short: "Disable a mod or skin",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		runToggle(args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

func runToggle(key string, enabled bool) {
	app := bootstrap(".")
	ctx := context.Background()

	if _, err := app.mirror.Refresh(ctx); err != nil {
		logger.Log.Fatalw("Failed to load mod listing", zap.Error(err))
	}

	done, err := app.mirror.SetEnabled(ctx, key, enabled)
	if err != nil {
		logger.Log.Fatalw("Toggle rejected", zap.String("key", key), zap.Error(err))
	}

	result := <-done
	if result.Err != nil {
		fmt.Println(ui.Error(fmt.Sprintf("Failed: %v", result.Err)))
		if result.Reverted {
			fmt.Println("The mod was left in its previous state.")
		}
		return
	}

	state := "disabled"
	if result.Enabled {
		state = "enabled"
	}
	fmt.Println(ui.Success(fmt.Sprintf("%s is now %s", key, state)))
}
