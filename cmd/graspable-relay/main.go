// Package main is the graspable object relay command. It replays detected-object markers from a
// rosbag or a JSON-lines stream through the relay node and writes the transforms and poses it
// publishes to stdout.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"go.viam.com/graspable/logging"
	"go.viam.com/graspable/ros"
	"go.viam.com/graspable/services/graspable"
)

const (
	// Flags.
	flagConfig      = "config"
	flagPreset      = "preset"
	flagBag         = "bag"
	flagTopic       = "topic"
	flagFormat      = "format"
	flagDebug       = "debug"
	flagMetricsAddr = "metrics-addr"
	flagLinger      = "linger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	var logger logging.Logger

	inputFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.StringFlag{
			Name:  flagPreset,
			Value: string(graspable.ModeContinuous),
			Usage: "reference configuration to use when no config file is given (continuous or event_triggered)",
		},
		&cli.StringFlag{
			Name:  flagBag,
			Usage: "read markers from the rosbag `FILE` instead of JSON lines on stdin",
		},
		&cli.StringFlag{
			Name:  flagTopic,
			Usage: "bag topic holding the markers, defaults to the configured marker topic",
		},
	}

	return &cli.App{
		Name:      "graspable-relay",
		Usage:     "pick the graspable object out of a marker stream and broadcast its pose",
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagFormat,
				Value: string(ros.FormatROS),
				Usage: "output message form (ros or viam)",
			},
			&cli.StringFlag{
				Name:  flagMetricsAddr,
				Usage: "serve prometheus metrics on `ADDR`",
			},
			&cli.DurationFlag{
				Name:  flagLinger,
				Usage: "in continuous mode, keep broadcasting this long after the input ends (0 waits for a signal)",
			},
		}, inputFlags...),
		Before: func(c *cli.Context) error {
			// stdout carries the relay output, so logs go to stderr.
			logger = logging.NewBlankLogger("graspable-relay")
			logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
			if !c.Bool(flagDebug) {
				logger.SetLevel(logging.INFO)
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			return runRelay(c, logger)
		},
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "print the acceptance verdict of every marker without relaying anything",
				UsageText: "graspable-relay [global options] inspect",
				Action: func(c *cli.Context) error {
					return runInspect(c, logger)
				},
			},
		},
	}
}

// lingerOrSignal waits for d, or for ctx to be done when d is zero.
func lingerOrSignal(ctx context.Context, d time.Duration) {
	if d <= 0 {
		<-ctx.Done()
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
