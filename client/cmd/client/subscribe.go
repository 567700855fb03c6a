package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quotestream/quotestream/client/internal/session"
)

func subscribeCmd() *cobra.Command {
	cfg := session.DefaultConfig()
	var count int

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Stream quote prices to stdout",
		Long: `Connect to the server, subscribe to a product and print one price per line
until interrupted, the connection drops, or --count prices have been printed.
Messages that carry no price are printed as "-".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runSubscribe(ctx, cfg, count)
		},
	}

	cmd.Flags().StringVar(&cfg.URL, "url", cfg.URL, "server WebSocket URL")
	cmd.Flags().StringVar(&cfg.ProductID, "product", cfg.ProductID, "product id to subscribe to")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many prices (0 = no limit)")

	return cmd
}

func runSubscribe(ctx context.Context, cfg session.Config, count int) error {
	s := session.New(cfg, slog.Default())
	if err := s.Connect(ctx); err != nil {
		return err
	}
	defer s.Close()

	printed := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case u, ok := <-s.Updates():
			if !ok {
				return fmt.Errorf("connection closed in state %s", s.State())
			}
			if u.Err != nil {
				slog.Warn("no value", "err", u.Err)
				fmt.Fprintln(os.Stdout, "-")
				continue
			}
			fmt.Fprintln(os.Stdout, u.Price)

			printed++
			if count > 0 && printed >= count {
				return nil
			}
		}
	}
}
