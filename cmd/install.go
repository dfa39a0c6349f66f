package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fossmodmanager/install"
	"fossmodmanager/logger"
	"fossmodmanager/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install <archive>...",
	Short: "Install mods from zip archives",
	Long: `Installs one or more zip archives. Archives carrying skin content are
registered as skins (disabled until enabled); plugin archives go straight
into the game's reframework tree. Archives install concurrently and one
failure never stops the rest.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		plain, _ := cmd.Flags().GetBool("plain")
		if plain {
			runInstall(args)
			return
		}
		runInstallTUI(args)
	},
}

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().Bool("plain", false, "Print plain output instead of the progress view")
}

// runInstall installs the batch without a progress view.
func runInstall(paths []string) {
	app := bootstrap(".")

	outcomes := app.installer.InstallBatch(context.Background(), paths)
	printOutcomes(outcomes)
}

func runInstallTUI(paths []string) {
	app := bootstrap(".")

	m := initialInstallModel(app, paths)
	app.installer.Observer = m.events

	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		logger.Log.Fatalw("Failed to run install view", zap.Error(err))
	}

	if fm, ok := final.(installModel); ok {
		printOutcomes(fm.outcomes)
	}
}

func printOutcomes(outcomes []install.Outcome) {
	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Success {
			succeeded++
			fmt.Println(ui.Success(fmt.Sprintf("Installed %s", filepath.Base(outcome.Path))))
			continue
		}
		fmt.Println(ui.Error(outcome.Err.Error()))
	}
	fmt.Printf("Installed %d/%d archives.\n", succeeded, len(outcomes))

	if succeeded == 0 && len(outcomes) > 0 {
		os.Exit(1)
	}
}
