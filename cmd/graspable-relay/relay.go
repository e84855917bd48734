package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/graspable/logging"
	"go.viam.com/graspable/metrics"
	"go.viam.com/graspable/referenceframe"
	"go.viam.com/graspable/ros"
	"go.viam.com/graspable/services/graspable"
	"go.viam.com/graspable/spatialmath"
	"go.viam.com/graspable/topic"
)

const outputQueueSize = 100

func runRelay(c *cli.Context, logger logging.Logger) (err error) {
	ctx := c.Context
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	format, err := ros.ParseFormat(c.String(flagFormat))
	if err != nil {
		return err
	}
	markers, err := openMarkers(c, cfg.Graspable)
	if err != nil {
		return err
	}
	gcfg := cfg.Graspable

	markerTopic := topic.New[*ros.Marker](gcfg.MarkerTopic, logger.Sublogger("topic"))
	tfTopic := topic.New[*referenceframe.Transform](gcfg.TransformTopic, logger.Sublogger("topic"))
	poseTopic := topic.New[spatialmath.Pose](gcfg.PoseTopic, logger.Sublogger("topic"))
	defer func() {
		markerTopic.Close()
		tfTopic.Close()
		poseTopic.Close()
	}()

	out := ros.NewJSONWriter(c.App.Writer, format)
	if _, err := tfTopic.Subscribe("stdout", outputQueueSize, func(ctx context.Context, tf *referenceframe.Transform) {
		if err := out.WriteTransform(tfTopic.Name(), tf); err != nil {
			logger.Warnw("failed to write transform", "error", err)
		}
	}); err != nil {
		return err
	}
	if _, err := poseTopic.Subscribe("stdout", gcfg.PoseQueueSize, func(ctx context.Context, pose spatialmath.Pose) {
		if err := out.WritePose(poseTopic.Name(), gcfg.ParentFrame, pose); err != nil {
			logger.Warnw("failed to write pose", "error", err)
		}
	}); err != nil {
		return err
	}

	relayMetrics := metrics.NewRelay()
	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, relayMetrics, logger)
		defer func() {
			err = multierr.Combine(err, shutdown())
		}()
	}

	node, err := graspable.NewNode(gcfg, markerTopic, tfTopic, poseTopic, logger.Sublogger("graspable"),
		graspable.WithMetrics(relayMetrics))
	if err != nil {
		return err
	}

	// Reading stdin cannot be interrupted, so a signal must not wait for the replay to return.
	replayDone := make(chan error, 1)
	goutils.PanicCapturingGo(func() {
		replayDone <- replay(ctx, markers, markerTopic)
	})
	var replayErr error
	select {
	case replayErr = <-replayDone:
	case <-ctx.Done():
	}
	if replayErr == nil && gcfg.Mode == graspable.ModeContinuous && node.State() == graspable.Acquired {
		logger.Infow("input exhausted, still broadcasting", "linger", c.Duration(flagLinger))
		lingerOrSignal(ctx, c.Duration(flagLinger))
	} else if replayErr == nil && node.State() == graspable.Searching {
		logger.Warnw("input exhausted without finding a graspable object")
	}

	closeErr := node.Close(context.Background())
	// Flush what the node already published.
	flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return multierr.Combine(replayErr, closeErr, tfTopic.WaitIdle(flushCtx), poseTopic.WaitIdle(flushCtx))
}

// replay publishes every marker in order, waiting for each to be handled before the next so that
// nothing is dropped. It stops early when ctx is done.
func replay(ctx context.Context, markers ros.MarkerReader, markerTopic *topic.Topic[*ros.Marker]) error {
	for {
		m, err := markers.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := markerTopic.Publish(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := markerTopic.WaitIdle(ctx); err != nil {
			return nil
		}
	}
}

func serveMetrics(addr string, m *metrics.Relay, logger logging.Logger) func() error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	goutils.PanicCapturingGo(func() {
		logger.Infow("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("metrics server failed", "error", err)
		}
	})
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
