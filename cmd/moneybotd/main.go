package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/moneybot/moneybotd/internal/app"
	"github.com/moneybot/moneybotd/internal/config"
	"github.com/moneybot/moneybotd/internal/display"
	"github.com/moneybot/moneybotd/internal/network"
)

// Version is injected at build time via -ldflags
var Version = "dev"

func main() {
	logger := logrus.New()
	logger.Infof("moneybotd v%s", Version)

	configFile := "config.json"
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.WithError(err).Fatal("configuration invalid")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	driver := network.NewNMCLIDriver(cfg.Wifi.Interface, cfg.Portal.Address)
	// The panel renderer binds here; the logging surface keeps the daemon
	// functional on hosts without the round LCD attached.
	surface := display.NewLogSurface(logger)

	a, err := app.New(cfg, driver, surface, logger)
	if err != nil {
		logger.WithError(err).Fatal("startup failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := a.Run(ctx)
	if err != nil {
		logger.WithError(err).Error("run failed")
		if code == 0 {
			code = 1
		}
	}
	if code == app.ExitRestart {
		logger.Info("exiting for supervisor restart")
	}

	a.Close()
	stop()
	os.Exit(code)
}
