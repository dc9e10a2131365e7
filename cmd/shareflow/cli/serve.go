package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shareflow/shareflow/internal/config"
	"github.com/shareflow/shareflow/internal/controlbus"
	"github.com/shareflow/shareflow/internal/coordinator"
	"github.com/shareflow/shareflow/internal/device"
	"github.com/shareflow/shareflow/internal/logging"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the ShareFlow peer service and local control bus.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Pretty)

	self, err := device.LocalDescriptor(device.DefaultKind)
	if err != nil {
		return err
	}
	logger.Info().Str("id", self.ID).Str("ip", self.IP).Msg("starting shareflow")

	hub := controlbus.NewHub(logger)
	busServer := controlbus.NewServer(hub, logger)
	coord := coordinator.New(cfg, logger, self, hub)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return busServer.Run(gctx) })
	g.Go(func() error { return coord.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
