package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/boomstarternetwork/btcminer/bitcoin"
	"github.com/boomstarternetwork/btcminer/stratum"
)

const (
	projectName    = "btcminer"
	projectVersion = "0.1.0"
)

func printBanner() {
	fmt.Printf("%s v%s — CPU Stratum miner\n", projectName, projectVersion)
}

func main() {
	printBanner()

	cfg := loadConfig()

	rotator, err := initLogging(cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	defer rotator.Close()

	numWorkers := cfg.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	algo, err := bitcoin.ParseAlgorithm(cfg.Algo)
	if err != nil {
		logrus.WithError(err).Error("invalid --algo")
		os.Exit(1)
	}

	sess := stratum.NewSession(cfg.User, cfg.Password, algo.HashFunc(), numWorkers)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- sess.Run(cfg.addr()) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-runErrCh:
		if err != nil {
			logrus.WithError(err).Error("session terminated")
			os.Exit(1)
		}
	case sig := <-sigCh:
		logrus.WithField("signal", sig).Info("shutting down")
		sess.Close()
		<-runErrCh
		os.Exit(0)
	}
}
