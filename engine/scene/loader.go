package scene

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

// Submitter runs jobs off the render thread.
type Submitter interface {
	Submit(jt metadata.JobTask) error
}

/**
 * @brief Builds a scene on a worker and hands it to the render thread exactly once.
 * The render thread polls without blocking and shows a placeholder until then.
 */
type Loader struct {
	once    sync.Once
	started bool
	mu      sync.Mutex
	ready   chan struct{}
	source  Source
	err     error
}

func NewLoader() *Loader {
	return &Loader{ready: make(chan struct{})}
}

// Start queues build on jobs. A loader can only be started once.
func (l *Loader) Start(jobs Submitter, build func() (Source, error)) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return errors.New("scene loader already started")
	}
	l.started = true
	l.mu.Unlock()

	return jobs.Submit(metadata.JobTask{
		JobType: metadata.JOB_TYPE_RESOURCE_LOAD,
		OnStart: func(params interface{}, results chan<- interface{}) error {
			src, err := build()
			if err != nil {
				return err
			}
			results <- src
			return nil
		},
		OnComplete: func(result interface{}) {
			src, ok := result.(Source)
			if !ok {
				l.finish(nil, fmt.Errorf("scene job returned %T", result))
				return
			}
			l.finish(src, nil)
		},
		OnFailure: func(err error) {
			l.finish(nil, err)
		},
	})
}

func (l *Loader) finish(src Source, err error) {
	l.once.Do(func() {
		l.source, l.err = src, err
		close(l.ready)
		if err != nil {
			core.LogError("scene failed to load: %s", err)
			return
		}
		core.LogInfo("scene '%s' ready", src.Name())
	})
}

// Poll reports whether loading finished, and with what result. It never blocks.
func (l *Loader) Poll() (Source, bool, error) {
	select {
	case <-l.ready:
		return l.source, true, l.err
	default:
		return nil, false, nil
	}
}

// Wait blocks until the scene is ready or ctx is done.
func (l *Loader) Wait(ctx context.Context) (Source, error) {
	select {
	case <-l.ready:
		return l.source, l.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
