package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
)

// Compiled-in defaults. With no arguments the client connects to these
// directly, per the CLI surface's "no arguments ⇒ compiled-in
// host/port/credentials" rule.
const (
	defaultHost     = "stratum.example-pool.test"
	defaultPort     = 3333
	defaultUser     = "btcminer.worker1"
	defaultPassword = "x"
	defaultWorkers  = 0 // 0 means "use all CPU cores"
	defaultLogFile  = "btcminer.log"
	defaultAlgo     = "sha256d"
)

// config holds the resolved startup configuration, parsed from the
// command line with compiled-in fallbacks for every field.
type config struct {
	Host     string `short:"o" long:"host" description:"pool hostname or IP" default:"stratum.example-pool.test"`
	Port     int    `short:"p" long:"port" description:"pool port" default:"3333"`
	User     string `short:"u" long:"user" description:"pool username/worker name" default:"btcminer.worker1"`
	Password string `long:"pass" description:"pool password" default:"x"`
	Workers  int    `short:"w" long:"workers" description:"number of mining worker goroutines (0 = all CPU cores)" default:"0"`
	LogFile  string `long:"logfile" description:"path to the rotated log file" default:"btcminer.log"`
	Algo     string `long:"algo" description:"proof-of-work algorithm: sha256d, scrypt, or x11" default:"sha256d"`
}

// loadConfig parses os.Args[1:] into a config. It handles --help/-h
// itself by printing usage and exiting 0, matching the CLI surface's
// "help ⇒ exit 0" rule; any other parse error exits 1.
func loadConfig() *config {
	cfg := config{
		Host:     defaultHost,
		Port:     defaultPort,
		User:     defaultUser,
		Password: defaultPassword,
		Workers:  defaultWorkers,
		LogFile:  defaultLogFile,
		Algo:     defaultAlgo,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	parser.Name = "btcminer"
	parser.Usage = "[OPTIONS]"

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return &cfg
}

func (c *config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
