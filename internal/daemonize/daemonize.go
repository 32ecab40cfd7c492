// Package daemonize wraps github.com/sevlyar/go-daemon to provide the
// pidfile locking, forking, and signal handling ethersrv.c's
// daemonize()/lockme()/main() select loop performed by hand.
package daemonize

import (
	"fmt"
	"os"
	"syscall"

	daemon "github.com/sevlyar/go-daemon"
	"github.com/sirupsen/logrus"
)

// LockPath is the pidfile lock path, matching the original's hard-coded
// /var/run/ethersrv.lock.
const LockPath = "/var/run/ethersrv.lock"

// Options controls how Run daemonizes.
type Options struct {
	// Foreground disables Reborn(); the process stays attached to its
	// controlling terminal. Corresponds to the CLI's -f flag.
	Foreground bool
	LogFile    string
}

// Run daemonizes the process (unless Foreground is set), starts work in
// a goroutine running concurrently with signal handling (mirroring
// go-daemon's own Example(), which launches its worker loop with `go
// func(){...}()` before calling ServeSignals rather than after it),
// registers SIGINT/SIGTERM/SIGQUIT handlers that invoke onStop, and
// blocks until one of them fires. It returns nil after a clean
// shutdown. If this call returns with isParent == true, the caller is the
// parent process and should exit immediately without running onStop or
// work.
func Run(opts Options, log *logrus.Logger, work func() error, onStop func() error) (isParent bool, err error) {
	if opts.Foreground {
		return false, serveForeground(log, work, onStop)
	}

	ctx := &daemon.Context{
		PidFileName: LockPath,
		PidFilePerm: 0644,
		LogFileName: opts.LogFile,
		LogFilePerm: 0640,
		WorkDir:     "/",
		Umask:       027,
	}

	child, err := ctx.Reborn()
	if err != nil {
		return false, fmt.Errorf("daemonize: reborn: %w", err)
	}
	if child != nil {
		return true, nil
	}
	defer ctx.Release()

	go runWork(log, work)

	handler := func(sig os.Signal) error {
		log.WithField("signal", sig).Info("received signal")
		if err := onStop(); err != nil {
			log.WithError(err).Warn("shutdown handler returned an error")
		}
		return daemon.ErrStop
	}
	daemon.SetSigHandler(handler, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	return false, daemon.ServeSignals()
}

// serveForeground emulates daemon.ServeSignals for the -f path, where
// there is no daemon context to manage: it starts work alongside the
// signal wait and invokes onStop once a termination signal arrives.
func serveForeground(log *logrus.Logger, work func() error, onStop func() error) error {
	sigCh := make(chan os.Signal, 1)
	signalNotify(sigCh)
	go runWork(log, work)
	<-sigCh
	return onStop()
}

// runWork runs the server loop to completion, logging rather than
// propagating its error: it normally only returns once onStop has
// closed the frame adapter out from under it.
func runWork(log *logrus.Logger, work func() error) {
	if err := work(); err != nil {
		log.WithError(err).Error("worker exited")
	}
}
