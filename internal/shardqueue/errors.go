package shardqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

var (
	// ErrExecutorClosed is returned by Submit after Stop.
	ErrExecutorClosed = errors.New("shardqueue: executor closed")
	// ErrQueueFull is matched by every *QueueFullError.
	ErrQueueFull = errors.New("shardqueue: queue full")
)

// QueueFullError reports the shard that stayed full past EnqueueTimeout.
type QueueFullError struct {
	Shard    int
	Length   int
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("shardqueue: shard %d full (%d/%d)", e.Shard, e.Length, e.Capacity)
}

func (e *QueueFullError) Is(target error) bool { return target == ErrQueueFull }

// irrecoverable errors are reported once and never retried. Anything else,
// ErrTransient included, gets another attempt.
func irrecoverable(err error) bool {
	switch {
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrUnauthorized),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrConflict),
		errors.Is(err, context.Canceled):
		return true
	}
	var pe *panicError
	if errors.As(err, &pe) {
		return true
	}
	return false
}

type panicError struct{ value any }

func (e *panicError) Error() string { return fmt.Sprintf("shardqueue: job panic: %v", e.value) }
