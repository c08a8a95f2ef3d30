package download

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Waiter polls the filesystem for downloads. It holds no per-wait state, so
// one Waiter can serve any number of concurrent Await calls.
type Waiter struct {
	fs  afero.Fs
	log logrus.FieldLogger
}

type Option func(*Waiter)

// WithFs sets the filesystem the waiter stats. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(w *Waiter) { w.fs = fs }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(w *Waiter) { w.log = log }
}

func NewWaiter(opts ...Option) *Waiter {
	discard := logrus.New()
	discard.Out = io.Discard
	w := &Waiter{fs: afero.NewOsFs(), log: discard}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Await blocks until the file described by spec is stable, the timeout
// elapses or ctx is done. It never writes or removes files.
func (w *Waiter) Await(ctx context.Context, spec WaitSpec) (Observation, error) {
	if err := spec.Validate(); err != nil {
		return Observation{}, err
	}
	log := w.log.WithField("path", spec.TargetPath)

	start := time.Now()
	deadline := start.Add(spec.Timeout)

	var (
		stable   int
		prevSize int64
		appeared bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return Observation{}, err
		}

		obs, err := w.observe(spec)
		if err != nil {
			return Observation{}, err
		}
		appeared = appeared || obs.Exists

		if obs.settled() {
			if stable > 0 && obs.Size == prevSize {
				stable++
			} else {
				stable = 1
			}
			prevSize = obs.Size
		} else {
			stable = 0
		}
		log.WithFields(obs.fields()).WithField("stable", stable).Debug("Polled download")

		if stable >= spec.StabilityChecks {
			log.WithField("elapsed", time.Since(start)).Debug("Download is stable")
			return obs, nil
		}

		now := time.Now()
		if !now.Before(deadline) {
			timeoutErr := &TimeoutError{
				Path:    spec.TargetPath,
				Timeout: spec.Timeout,
				Elapsed: now.Sub(start),
			}
			if appeared {
				timeoutErr.Last = &obs
			}
			return Observation{}, timeoutErr
		}

		pause := spec.PollInterval
		if remaining := deadline.Sub(now); remaining < pause {
			pause = remaining
		}
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Observation{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (w *Waiter) observe(spec WaitSpec) (Observation, error) {
	obs := Observation{ObservedAt: time.Now()}

	info, err := w.fs.Stat(spec.TargetPath)
	switch {
	case err == nil:
		if !info.Mode().IsRegular() {
			return obs, &IOError{Path: spec.TargetPath, Op: "stat", Err: ErrNotRegular}
		}
		obs.Exists = true
		obs.Size = info.Size()
	case isNotExist(err):
	default:
		return obs, &IOError{Path: spec.TargetPath, Op: "stat", Err: err}
	}

	for _, suffix := range spec.InProgressSuffixes {
		marker := spec.TargetPath + suffix
		_, err := w.fs.Stat(marker)
		if err == nil {
			obs.InProgress = true
			break
		}
		if !isNotExist(err) {
			return obs, &IOError{Path: marker, Op: "stat", Err: err}
		}
	}
	return obs, nil
}

// isNotExist also covers a parent path that is a file rather than a directory.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR)
}

// AwaitAll waits for every spec concurrently. The first failure cancels the
// remaining waits. Observations are returned in the order of specs.
func AwaitAll(ctx context.Context, w *Waiter, specs ...WaitSpec) ([]Observation, error) {
	observations := make([]Observation, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			obs, err := w.Await(gctx, spec)
			if err != nil {
				return err
			}
			observations[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return observations, nil
}
