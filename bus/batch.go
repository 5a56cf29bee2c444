package bus

import (
	"context"
	"time"

	"github.com/arloliu/go-obdsim/internal/pool"
)

// MaxBatchSize is the most frames ReceiveBatch returns at once.
const MaxBatchSize = 256

// ReceiveBatch implements the short-blocking Receive contract over a frame channel.
//
// It waits up to poll for a first frame on rx, then takes whatever else is queued without
// blocking, up to MaxBatchSize frames. An expired poll yields an empty batch. It returns
// ctx.Err() once ctx is done and ErrClosed once done is closed or rx is closed with
// nothing left in it.
func ReceiveBatch(ctx context.Context, rx <-chan Frame, done <-chan struct{}, poll time.Duration) ([]Frame, error) {
	timer := pool.GetTimer(poll)
	defer pool.PutTimer(timer)

	var first Frame
	var ok bool
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		return nil, ErrClosed
	case <-timer.C:
		return nil, nil
	case first, ok = <-rx:
		if !ok {
			return nil, ErrClosed
		}
	}

	frames := []Frame{first}
	for len(frames) < MaxBatchSize {
		select {
		case f, ok := <-rx:
			if !ok {
				return frames, nil
			}
			frames = append(frames, f)
		default:
			return frames, nil
		}
	}

	return frames, nil
}
