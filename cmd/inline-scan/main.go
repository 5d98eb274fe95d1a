package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/sysdiglabs/secure-inline-scan/pkg/cmd"
	"github.com/sysdiglabs/secure-inline-scan/pkg/etc"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

var (
	// Default wise GoReleaser sets three ldflags:
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{})

	info := etc.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	os.Exit(run(info))
}

func run(info etc.BuildInfo) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var interrupted atomic.Bool

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		captured := <-sigint
		log.WithField("signal", captured.String()).Warn("Interrupted, tearing down")
		interrupted.Store(true)
		cancel()
	}()

	err := cmd.NewRootCmd(info).ExecuteContext(ctx)
	return exitCode(err, interrupted.Load())
}

// exitCode preserves the distinction between a clean pass, any failure and
// a user interruption.
func exitCode(err error, interrupted bool) int {
	switch {
	case err == nil:
		return exitOK
	case interrupted:
		return exitInterrupted
	default:
		log.WithError(err).Error("Scan failed")
		return exitFailure
	}
}
