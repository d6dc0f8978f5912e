package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/internal/backend"
	"firestige.xyz/pktcraft/internal/log"
	"firestige.xyz/pktcraft/internal/metrics"
	"firestige.xyz/pktcraft/pkg/craft"
)

var (
	sendFlags    packetFlags
	sendCount    int
	sendInterval time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a crafted packet repeatedly",
	Long: `Craft a packet from a template once and send it --count times through the
configured backend, waiting --interval between packets.

A count of 0 keeps sending until interrupted. The metrics endpoint is served
while sending when metrics are enabled in the configuration.`,
	Example: `  sudo pktcraft send -t templates/syn.yaml --backend raw --count 10 --interval 100ms`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg != nil && cfg.Metrics.Enabled {
			srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := srv.Stop(context.Background()); err != nil {
					log.GetLogger().WithError(err).Warn("failed to stop metrics server")
				}
			}()
		}

		stack, err := loadStack(sendFlags.template)
		if err != nil {
			return err
		}
		sender, err := openBackend(sendFlags, "", cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeSender(sender)

		opts := sendOptions{count: sendCount, interval: sendInterval, verbose: sendFlags.verbose}
		sent, err := runSend(ctx, stack, sender, opts, cmd.OutOrStdout())
		log.GetLogger().WithFields(map[string]interface{}{
			"backend": sender.Name(),
			"sent":    sent,
		}).Info("send finished")
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	addPacketFlags(sendCmd, &sendFlags)
	sendCmd.Flags().IntVarP(&sendCount, "count", "n", 1, "number of packets to send, 0 for no limit")
	sendCmd.Flags().DurationVarP(&sendInterval, "interval", "i", 0, "delay between packets")
}

type sendOptions struct {
	count    int
	interval time.Duration
	verbose  bool
}

// runSend crafts the stack once and hands the result to sender opts.count
// times. It returns the number of packets the sender accepted.
func runSend(ctx context.Context, stack *craft.Stack, sender backend.Sender, opts sendOptions, out io.Writer) (int, error) {
	data, err := stack.Build()
	metrics.ObserveCraft(len(data), err)
	if err != nil {
		return 0, fmt.Errorf("failed to craft packet: %w", err)
	}
	if opts.verbose {
		fmt.Fprint(out, stack.String())
	}

	frame, err := backend.NewFrame(stack, data)
	if err != nil {
		return 0, err
	}

	var ticker *time.Ticker
	if opts.interval > 0 {
		ticker = time.NewTicker(opts.interval)
		defer ticker.Stop()
	}

	sent := 0
	for opts.count <= 0 || sent < opts.count {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if sent > 0 && ticker != nil {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-ticker.C:
			}
		}
		if err := sender.Send(ctx, frame); err != nil {
			return sent, fmt.Errorf("failed to send packet %d: %w", sent+1, err)
		}
		sent++
	}
	return sent, nil
}
