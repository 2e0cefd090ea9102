package main

import (
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/app-config"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/config"
	log "github.com/sirupsen/logrus"
)

//nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.SetLevel(cfg.LogLevel)

	appCfg, err := appconfig.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	svc, err := appCfg.MessageboxService()
	if err != nil {
		log.Fatal(err)
	}

	log.RegisterExitHandler(svc.Stop)

	log.Infof("messageboxd %s (%s, %s)", version, commit, date)
	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		log.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
}
