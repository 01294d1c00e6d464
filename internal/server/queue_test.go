package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/deploybuilder/internal/pipeline"
)

type depthRecorder struct {
	recorderStub
	mu     sync.Mutex
	depths []int
}

func (d *depthRecorder) SetQueueDepth(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depths = append(d.depths, n)
}

type recorderStub struct{}

func (recorderStub) ObserveStageDuration(string, time.Duration)         {}
func (recorderStub) ObserveRunDuration(time.Duration)                   {}
func (recorderStub) IncRunOutcome(string)                               {}
func (recorderStub) IncProjectType(string)                              {}
func (recorderStub) IncDeploySource(string)                             {}
func (recorderStub) ObserveCommandDuration(string, time.Duration, bool) {}

func TestQueueProcessesJobs(t *testing.T) {
	rec := &depthRecorder{}
	q := NewQueue(10, 2, func(_ context.Context, job *Job) (*pipeline.Report, error) {
		if job.Site == "bad" {
			return nil, errors.New("boom")
		}
		return &pipeline.Report{RunID: job.ID}, nil
	}, rec)
	q.Start(t.Context())
	t.Cleanup(q.Stop)

	require.NoError(t, q.Enqueue(&Job{ID: "ok", Site: "good"}))
	require.NoError(t, q.Enqueue(&Job{ID: "ko", Site: "bad"}))

	require.Eventually(t, func() bool {
		a, _ := q.Snapshot("ok")
		b, _ := q.Snapshot("ko")
		return a.Status == StatusDeployed && b.Status == StatusFailed
	}, 5*time.Second, 5*time.Millisecond)

	ok, _ := q.Snapshot("ok")
	require.Equal(t, "ok", ok.Report.RunID)
	require.NotNil(t, ok.StartedAt)
	require.NotNil(t, ok.CompletedAt)
	ko, _ := q.Snapshot("ko")
	require.Equal(t, "boom", ko.Error)

	rec.mu.Lock()
	require.NotEmpty(t, rec.depths)
	rec.mu.Unlock()
}

func TestQueueEnqueueValidation(t *testing.T) {
	q := NewQueue(1, 1, func(context.Context, *Job) (*pipeline.Report, error) { return nil, nil }, nil)
	require.Error(t, q.Enqueue(nil))
	require.Error(t, q.Enqueue(&Job{}))
	require.NoError(t, q.Enqueue(&Job{ID: "a"}))
	require.ErrorIs(t, q.Enqueue(&Job{ID: "b"}), ErrQueueFull)
	require.Equal(t, 1, q.Length())

	_, ok := q.Snapshot("b")
	require.False(t, ok, "rejected jobs are not remembered")
	a, ok := q.Snapshot("a")
	require.True(t, ok)
	require.Equal(t, StatusQueued, a.Status)
	require.False(t, a.CreatedAt.IsZero())
}

func TestQueueListNewestFirstAndBoundedHistory(t *testing.T) {
	q := NewQueue(10, 1, func(context.Context, *Job) (*pipeline.Report, error) { return nil, nil }, nil)
	q.historySize = 2
	q.Start(t.Context())
	t.Cleanup(q.Stop)

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, q.Enqueue(&Job{ID: id, Site: id}))
		require.Eventually(t, func() bool {
			j, _ := q.Snapshot(id)
			return j.Status == StatusDeployed
		}, 5*time.Second, 5*time.Millisecond)
	}
	// Eviction happens on the next Enqueue, once older jobs have finished.
	require.NoError(t, q.Enqueue(&Job{ID: "4", Site: "4"}))

	list := q.List()
	require.LessOrEqual(t, len(list), 3)
	require.Equal(t, "4", list[0].ID)
	_, ok := q.Snapshot("1")
	require.False(t, ok)
}

func TestSiteLocksSerializeSameSite(t *testing.T) {
	var locks siteLocks
	var inside, maxInside int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("same")
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxInside)
}

func TestSiteLocksIndependentSites(t *testing.T) {
	var locks siteLocks
	unlockA := locks.lock("a")
	done := make(chan struct{})
	go func() {
		unlock := locks.lock("b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different site blocked")
	}
	unlockA()
}
