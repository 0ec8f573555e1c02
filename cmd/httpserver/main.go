package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/fleetyard/provisioning-server/cmd/flags"
	"github.com/fleetyard/provisioning-server/configstore"
	"github.com/fleetyard/provisioning-server/httpserver"
	"github.com/fleetyard/provisioning-server/resolver"
)

func main() {
	app := &cli.App{
		Name:  "provisioning-server",
		Usage: "Serve resolved node configuration specs with token authentication",
		Flags: append([]cli.Flag{
			flags.ConfigRootFlag,
			flags.ListenAddrFlag,
			flags.TrustNetworkFlag,
		}, flags.CommonFlags...),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	configRoot := cCtx.String(flags.ConfigRootFlag.Name)
	logger.Info("Loading configuration tree", "root", configRoot)

	store, err := configstore.New(configRoot, logger)
	if err != nil {
		logger.Error("Failed to load configuration tree", "err", err)
		return err
	}

	specResolver := resolver.New(store, logger)
	handler := httpserver.NewHandler(store, specResolver, logger)
	admin := httpserver.NewAdminHandler(store, specResolver, logger)

	cfg := flags.ConfigureServer(cCtx, logger)
	server, err := httpserver.New(cfg, handler, admin)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}
