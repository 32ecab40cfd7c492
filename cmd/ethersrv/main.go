// Command ethersrv answers EtherDFS subfunction requests from legacy DOS
// clients over a raw Ethernet link, serving one or more host directories as
// lettered drives.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oerg866/ethersrv-866/internal/config"
	"github.com/oerg866/ethersrv-866/internal/daemonize"
	"github.com/oerg866/ethersrv-866/internal/dispatch"
	"github.com/oerg866/ethersrv-866/internal/frameio"
	"github.com/oerg866/ethersrv-866/internal/wire"
)

var (
	foreground bool
	logFile    string
)

const maxDrivePaths = config.MaxDrives

var rootCmd = &cobra.Command{
	Use:   "ethersrv [flags] interface path [path...]",
	Short: "Serve host directories to DOS clients over the EtherDFS protocol",
	Long: `ethersrv answers EtherDFS requests on a raw Ethernet interface,
exposing up to 24 host directories as drives C: through Z: to legacy
DOS machines that have no TCP/IP stack.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runServe,
}

func init() {
	rootCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "stay attached to the controlling terminal instead of daemonizing")
	rootCmd.Flags().StringVarP(&logFile, "log-file", "l", "", "log file path when daemonized (foreground mode logs to stdout)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ifName := args[0]
	paths := args[1:]
	if len(paths) > maxDrivePaths {
		return fmt.Errorf("ethersrv: at most %d drive paths are supported, got %d", maxDrivePaths, len(paths))
	}

	log := newLogger()

	drives, err := config.Build(paths, log)
	if err != nil {
		return fmt.Errorf("ethersrv: building drive table: %w", err)
	}

	adapter, err := frameio.OpenRawSocket(ifName)
	if err != nil {
		return fmt.Errorf("ethersrv: opening %s: %w", ifName, err)
	}

	srv := dispatch.New(drives, adapter.MAC(), log)

	onStop := func() error {
		log.Info("shutting down")
		return adapter.Close()
	}
	work := func() error {
		log.WithFields(logrus.Fields{"interface": ifName, "drives": len(paths)}).Info("ethersrv listening")
		return serveLoop(srv, adapter, log)
	}

	if _, err := daemonize.Run(daemonize.Options{Foreground: foreground, LogFile: logFile}, log, work, onStop); err != nil {
		return fmt.Errorf("ethersrv: %w", err)
	}
	return nil
}

func serveLoop(srv *dispatch.Server, adapter frameio.Adapter, log *logrus.Logger) error {
	buf := make([]byte, wire.MaxFrameLen)
	for {
		n, err := adapter.Recv(buf)
		if err != nil {
			return fmt.Errorf("ethersrv: recv: %w", err)
		}
		frame, err := frameio.Validate(buf[:n], adapter.MAC())
		if err != nil {
			log.WithError(err).Debug("dropped malformed frame")
			continue
		}
		reply, ok := srv.Dispatch(frame)
		if !ok {
			continue
		}
		if err := adapter.Send(reply); err != nil {
			log.WithError(err).Warn("failed to send reply")
		}
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	if foreground {
		log.SetOutput(colorable.NewColorableStdout())
		log.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true})
	}
	return log
}
