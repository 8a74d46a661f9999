package commands

import (
	"fmt"
	"time"

	"github.com/yangirov/stock-background/internal/features/scheduler"

	"github.com/spf13/cobra"
)

var delayCmd = &cobra.Command{
	Use:   "delay",
	Short: "Print the delay until the next minute boundary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		delay := scheduler.InitialDelay(now)
		fmt.Fprintf(cmd.OutOrStdout(), "now:   %s\nfires: %s\ndelay: %dms\n",
			now.Format("15:04:05.000"),
			now.Add(delay).Format("15:04:05.000"),
			delay.Milliseconds())
		return nil
	},
}
