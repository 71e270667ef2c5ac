// Package lock serializes writers of a file through an advisory lock on a
// sibling ".lock" file.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// Default timing for lock acquisition.
const (
	DefaultTimeout = 5 * time.Second
	DefaultRetry   = 200 * time.Millisecond
)

// ErrTimeout is returned when the lock could not be taken in time.
var ErrTimeout = errors.New("lock timeout")

// Locker acquires per-file locks with a fixed retry delay and an overall
// timeout. Locks are flock(2) locks held through separate file descriptors,
// so they exclude goroutines of this process as well as other processes.
type Locker struct {
	timeout time.Duration
	retry   time.Duration
}

// New returns a Locker. Non-positive values fall back to the defaults.
func New(timeout, retry time.Duration) *Locker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retry <= 0 {
		retry = DefaultRetry
	}
	return &Locker{timeout: timeout, retry: retry}
}

// Lock is a held file lock.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Path returns the lock file path used for target.
func Path(target string) string {
	return target + ".lock"
}

// Acquire takes the exclusive lock for target, retrying until the Locker's
// timeout or ctx expires.
func (l *Locker) Acquire(ctx context.Context, target string) (*Lock, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	fl := flock.New(Path(target))
	ok, err := fl.TryLockContext(ctx, l.retry)
	if ok {
		return &Lock{path: fl.Path(), fl: fl}, nil
	}
	_ = fl.Close()
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s", ErrTimeout, target)
	}
	return nil, fmt.Errorf("acquiring lock %s: %w", target, err)
}

// Release unlocks. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	err := l.fl.Unlock()
	_ = l.fl.Close()
	l.fl = nil
	return err
}

// With runs fn while holding the lock for target. The lock is always
// released when With returns.
func (l *Locker) With(ctx context.Context, target string, fn func() error) error {
	lk, err := l.Acquire(ctx, target)
	if err != nil {
		return err
	}
	defer lk.Release()

	return fn()
}
