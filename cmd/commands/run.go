package commands

// Long-running mode: one render at the top of every minute until SIGINT/SIGTERM

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/yangirov/stock-background/internal/features/scheduler"
	"github.com/yangirov/stock-background/internal/infra/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Refresh the wallpaper every minute",
	Long:  `Wait for the next minute boundary, render the chart, then re-render every 60 seconds until interrupted.`,
	RunE:  runScheduler,
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	if addr := a.cfg.Metrics.Addr; addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, addr); err != nil {
				log.LogError("Metrics server failed", zap.String("addr", addr), zap.Error(err))
			}
		}()
	}

	s := scheduler.New(func(ctx context.Context) {
		_ = a.pipeline.RunCycle(ctx)
	}, scheduler.Options{
		SkipOverlapping: a.cfg.Scheduler.SkipOverlapping,
		OnSkip:          a.metrics.ObserveSkip,
	})
	if err := s.Start(ctx); err != nil {
		return err
	}

	log.LogSuccess("Wallpaper updater is running",
		zap.String("ticker", a.cfg.Instrument.Ticker),
		zap.String("output", a.cfg.Output.Path))

	<-ctx.Done()
	log.LogInfo("Shutdown signal received, stopping scheduler...")
	s.Stop()
	log.LogSuccess("Wallpaper updater stopped")
	return nil
}
