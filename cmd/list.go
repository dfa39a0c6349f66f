package cmd

import (
	"context"
	"fmt"

	"fossmodmanager/logger"
	"fossmodmanager/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered mods and skins",
	Long: `Rescans the game installation, then prints every mod and skin the
registry knows about together with its enabled state.`,
	Run: func(_ *cobra.Command, _ []string) {
		runList()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList() {
	app := bootstrap(".")
	ctx := context.Background()

	snap, err := app.mirror.Refresh(ctx)
	if err != nil {
		logger.Log.Fatalw("Failed to load mod listing", zap.Error(err))
	}
	if reconcileErr := app.mirror.LastReconcileError(); reconcileErr != nil {
		fmt.Println(ui.Error(fmt.Sprintf("Warning: disk rescan failed, listing may be stale: %v", reconcileErr)))
	}

	if len(snap.Entries) == 0 {
		fmt.Println("No mods registered. Install some with 'fossmodmanager install <archive>'.")
		return
	}

	app.thumbs.BeginPass()
	thumbs := app.thumbs.Resolve(ctx, snap.ThumbnailPaths())

	fmt.Printf("%-40s %-6s %-12s %-4s %s\n", "Name", "Kind", "Version", "Img", "Status")
	for _, entry := range snap.Entries {
		version := entry.Version
		if version == "" {
			version = "-"
		}
		thumbMarker := "-"
		if _, ok := thumbs[entry.ThumbnailPath]; ok {
			thumbMarker = "yes"
		}
		fmt.Printf("%-40s %-6s %-12s %-4s %s\n",
			truncate(entry.Name, 38),
			kindLabel(entry.Kind),
			truncate(version, 10),
			thumbMarker,
			ui.Status(entry.Enabled, false),
		)
	}
	fmt.Printf("\n%d entries\n", len(snap.Entries))
	app.thumbs.Flush()
}
