package commands

// Root command for Cobra CLI
// Registers the run, render and delay subcommands and the shared config flags

import (
	"github.com/yangirov/stock-background/internal/infra/config"

	"github.com/spf13/cobra"
)

var (
	configDir string
	envFile   string
)

var rootCmd = &cobra.Command{
	Use:   "stock-background",
	Short: "Stock Background - minute-fresh price chart wallpaper",
	Long: `Stock Background renders the price history of one instrument into a 1280x720 PNG
and refreshes it at the top of every minute, for use as a desktop background.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configDir, "config-dir", ".", "Directory containing config.yaml")
	pf.StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	config.RegisterFlags(pf)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(delayCmd)
}
