package cmd

import (
	"context"
	"fmt"

	"fossmodmanager/logger"
	"fossmodmanager/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <mod>",
	Short: "Remove a mod or skin and all its files",
	Long: `Removes the mod or skin from the registry along with its files.
Enabled skins are disabled first so nothing they placed in the game root
is left behind.`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		runDelete(args[0])
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(key string) {
	app := bootstrap(".")
	ctx := context.Background()

	if err := app.registry.Delete(ctx, key); err != nil {
		logger.Log.Fatalw("Delete failed", zap.String("key", key), zap.Error(err))
	}

	if _, err := app.mirror.Refresh(ctx); err != nil {
		logger.Log.Warnw("Refresh after delete failed", zap.Error(err))
	}

	fmt.Println(ui.Success(fmt.Sprintf("Deleted %s", key)))
}
