package app

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"

	"github.com/bft-labs/ledship/internal/domain"
	"github.com/bft-labs/ledship/internal/ports"
)

// DefaultQueueSize is the number of frames buffered between ingest and dispatch.
const DefaultQueueSize = 1000

// PipelineConfig contains configuration for the pipeline.
type PipelineConfig struct {
	// QueueSize bounds the hand-off queue. When it is full the receive loop
	// blocks instead of dropping frames.
	QueueSize int
}

// Pipeline connects a FrameSource to a Dispatcher through a bounded queue.
// The receive loop and the dispatch loop run as two goroutines; each frame
// is handed over exactly once.
type Pipeline struct {
	config     PipelineConfig
	source     ports.FrameSource
	dispatcher *Dispatcher
	logger     ports.Logger
	stats      *StatsTracker

	pending atomic.Int64
}

// NewPipeline creates a pipeline. A QueueSize below 1 uses DefaultQueueSize.
func NewPipeline(config PipelineConfig, source ports.FrameSource, dispatcher *Dispatcher, logger ports.Logger, stats *StatsTracker) *Pipeline {
	if config.QueueSize < 1 {
		config.QueueSize = DefaultQueueSize
	}
	if stats == nil {
		stats = dispatcher.stats
	}
	return &Pipeline{
		config:     config,
		source:     source,
		dispatcher: dispatcher,
		logger:     logger,
		stats:      stats,
	}
}

// Pending returns the number of frames waiting in the queue.
func (p *Pipeline) Pending() int {
	return int(p.pending.Load())
}

// Run receives and dispatches frames until ctx is cancelled or the source
// reports end of stream. Cancelling ctx closes the source. Frames still
// queued when ctx is cancelled are discarded.
func (p *Pipeline) Run(ctx context.Context) error {
	queue := make(chan domain.Frame, p.config.QueueSize)

	stop := context.AfterFunc(ctx, func() {
		if err := p.source.Close(); err != nil {
			p.logger.Warn("failed to close frame source", ports.Err(err))
		}
	})
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.consume(ctx, queue)
	}()

	err := p.produce(ctx, queue)
	close(queue)
	<-done

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (p *Pipeline) produce(ctx context.Context, queue chan<- domain.Frame) error {
	bo := newBackoff(DefaultBackoffInitial, DefaultBackoffMax)

	for {
		frame, err := p.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				p.logger.Info("frame source closed")
				return nil
			}
			p.logger.Warn("receive failed",
				ports.Err(err),
				ports.Duration("backoff", bo.Current()),
			)
			if werr := bo.Wait(ctx); werr != nil {
				return werr
			}
			continue
		}
		bo.Reset()

		p.stats.frameReceived(frame)
		if frame.Truncated {
			p.logger.Warn("receive buffer size might be too low",
				ports.Uint64("seq", frame.Seq),
				ports.Int("bytes", len(frame.Data)),
			)
		}

		p.pending.Add(1)
		select {
		case queue <- frame:
		case <-ctx.Done():
			p.pending.Add(-1)
			return ctx.Err()
		}
	}
}

func (p *Pipeline) consume(ctx context.Context, queue <-chan domain.Frame) {
	for frame := range queue {
		p.pending.Add(-1)
		if ctx.Err() != nil {
			continue
		}
		// Errors are logged and counted by the dispatcher; the next frame
		// proceeds normally.
		_, _ = p.dispatcher.Dispatch(ctx, frame)
	}
}
