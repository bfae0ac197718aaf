package ports

import (
	"context"

	"github.com/bft-labs/ledship/internal/domain"
)

// FrameSource delivers raw pixel frames, one per call.
type FrameSource interface {
	// Next blocks until the next frame arrives.
	// The returned frame's Data is owned by the caller.
	// After Close, Next returns an error wrapping net.ErrClosed.
	Next(ctx context.Context) (domain.Frame, error)

	// Close releases the source and unblocks a pending Next.
	Close() error
}
