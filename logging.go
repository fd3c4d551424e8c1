package main

import (
	"io"
	"os"

	"github.com/jrick/logrotate/rotator"
	"github.com/sirupsen/logrus"
)

// maxLogRollSize is in KiB, matching rotator.New's unit.
const maxLogRollSize = 10 * 1024

// maxLogRolls is how many rotated files are kept alongside the active one.
const maxLogRolls = 3

// initLogging points logrus at both standard output and a size-rotated
// file sink, so a long-running miner's logs don't grow unbounded on
// disk while still surfacing live to the terminal.
func initLogging(logFile string) (*rotator.Rotator, error) {
	r, err := rotator.New(logFile, maxLogRollSize, false, maxLogRolls)
	if err != nil {
		return nil, err
	}

	logrus.SetOutput(io.MultiWriter(os.Stdout, r))
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return r, nil
}
