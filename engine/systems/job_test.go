package systems

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

func TestNewJobSystemValidation(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, core.ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, core.ErrNegativeChannelSize)
}

func TestJobSystemRunsCallbacks(t *testing.T) {
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)

	var mu sync.Mutex
	var results []interface{}
	var failures []error
	var wg sync.WaitGroup

	ok := metadata.JobTask{
		JobType:     metadata.JOB_TYPE_GENERAL,
		InputParams: 21,
		OnStart: func(params interface{}, out chan<- interface{}) error {
			out <- params.(int) * 2
			return nil
		},
		OnComplete: func(result interface{}) {
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		},
		OnCompletionCallback: wg.Done,
	}
	bad := metadata.JobTask{
		JobType: metadata.JOB_TYPE_RESOURCE_LOAD,
		OnStart: func(interface{}, chan<- interface{}) error {
			return errors.New("boom")
		},
		OnComplete: func(interface{}) { t.Error("OnComplete called for a failed job") },
		OnFailure: func(err error) {
			mu.Lock()
			failures = append(failures, err)
			mu.Unlock()
		},
		OnCompletionCallback: wg.Done,
	}

	wg.Add(2)
	require.NoError(t, js.Submit(ok))
	require.NoError(t, js.Submit(bad))
	wg.Wait()

	assert.Equal(t, []interface{}{42}, results)
	require.Len(t, failures, 1)
	assert.EqualError(t, failures[0], "boom")

	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
	assert.ErrorIs(t, js.Submit(ok), ErrJobSystemStopped)
}

func TestJobSystemRejectsEmptyJob(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	defer js.Shutdown()
	assert.Error(t, js.Submit(metadata.JobTask{}))
}
