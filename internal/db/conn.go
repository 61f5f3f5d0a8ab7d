package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Conn is the connection handed to consumers: either a live Store or an Unavailable marker
// carrying the reason. Consumers check it before issuing operations.
type Conn struct {
	store Store
	cause error
}

// Connected wraps a live store.
func Connected(s Store) Conn { return Conn{store: s} }

// Unavailable records that no store could be reached.
func Unavailable(cause error) Conn {
	if cause == nil {
		cause = errors.New("not connected")
	}
	return Conn{cause: cause}
}

// Available reports whether a live store is present.
func (c Conn) Available() bool { return c.store != nil }

// Store returns the live store or an error wrapping ErrUnavailable.
func (c Conn) Store() (Store, error) {
	if c.store == nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, c.cause)
	}
	return c.store, nil
}

// Ping checks the live store; an Unavailable connection reports its cause.
func (c Conn) Ping(ctx context.Context) error {
	s, err := c.Store()
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

// Close releases the store if one is present.
func (c Conn) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// RetryPolicy bounds connection attempts.
type RetryPolicy struct {
	Attempts     int
	ReadyTimeout time.Duration
	Backoff      time.Duration
}

// Connect opens a store and waits for it to answer, retrying with doubling backoff.
// It never fails: exhausting the attempts yields an Unavailable connection.
func Connect(ctx context.Context, open func() (Store, error), p RetryPolicy) Conn {
	attempts := max(p.Attempts, 1)
	backoff := p.Backoff
	var last error
	for i := range attempts {
		if i > 0 {
			select {
			case <-ctx.Done():
				return Unavailable(ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		s, err := open()
		if err != nil {
			last = err
			continue
		}
		if err := s.WaitForReady(ctx, p.ReadyTimeout); err != nil {
			s.Close()
			last = err
			continue
		}
		return Connected(s)
	}
	return Unavailable(fmt.Errorf("after %d attempts: %w", attempts, last))
}
