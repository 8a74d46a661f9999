package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/yangirov/stock-background/internal/infra/log"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the wallpaper once and exit",
	RunE:  runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	return a.pipeline.RunCycle(ctx)
}
