package util

import (
	"context"
	"sync"
	"time"
)

// ContextJob is a context that outlives its parent until the job reports Done.
type ContextJob struct {
	jobDone chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

func (cj *ContextJob) Done() {
	cj.once.Do(func() {
		close(cj.jobDone)
	})
}

func (cj *ContextJob) GetContext() context.Context {
	return cj.ctx
}

// DelayedCancelContextWithJob returns a context cancelled once parent is done and either the job
// finished or maxDelay passed, whichever comes first.
func DelayedCancelContextWithJob(
	parent context.Context,
	maxDelay time.Duration,
) *ContextJob {
	jobDone := make(chan struct{})
	// Values such as log fields carry over, cancellation does not.
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	go func() {
		defer cancel()
		<-parent.Done()

		timer := time.NewTimer(maxDelay)
		defer timer.Stop()

		select {
		case <-jobDone:
		case <-timer.C:
		}
	}()

	return &ContextJob{
		ctx:     ctx,
		cancel:  cancel,
		jobDone: jobDone,
	}
}
