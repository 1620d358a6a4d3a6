package ingest

import (
	"context"
	"testing"
	"time"

	"MSMA/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueBackpressure(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	require.NoError(t, q.Enqueue(model.IngestionEvent{TrackID: 1}))
	require.NoError(t, q.Enqueue(model.IngestionEvent{TrackID: 2}))

	err := q.Enqueue(model.IngestionEvent{TrackID: 3})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, q.Len())
}

func TestPoolProcessesQueuedEvents(t *testing.T) {
	t.Parallel()

	cls := &fakeClassifier{audioGenre: "rock"}
	repo := newFakeTrackRepo()
	env := newTestEnv(t, repo, cls)
	repo.ingested = 5

	const n = 6
	for i := int64(1); i <= n; i++ {
		require.NoError(t, repo.Create(context.Background(), submittedTrack(i, env.audioURL, "lyrics")))
	}

	q := NewQueue(n)
	for i := int64(1); i <= n; i++ {
		require.NoError(t, q.Enqueue(model.IngestionEvent{TrackID: i}))
	}

	pool := NewPool(q, env.orchestrator, 3)
	pool.Start()

	require.Eventually(t, func() bool {
		for i := int64(1); i <= n; i++ {
			if repo.status(i) != model.StatusReviewPending {
				return false
			}
		}
		return true
	}, 10*time.Second, 10*time.Millisecond)

	pool.Stop()
}

func TestPoolStopDrainsQueue(t *testing.T) {
	t.Parallel()

	cls := &fakeClassifier{audioGenre: "rock"}
	repo := newFakeTrackRepo()
	env := newTestEnv(t, repo, cls)
	repo.ingested = 5

	const n = 4
	q := NewQueue(n)
	for i := int64(1); i <= n; i++ {
		require.NoError(t, repo.Create(context.Background(), submittedTrack(i, env.audioURL, "lyrics")))
		require.NoError(t, q.Enqueue(model.IngestionEvent{TrackID: i}))
	}

	pool := NewPool(q, env.orchestrator, 1)
	pool.Start()
	// Stop must not return until every queued event has been settled.
	pool.Stop()

	assert.Equal(t, 0, q.Len())
	for i := int64(1); i <= n; i++ {
		assert.Equal(t, model.StatusReviewPending, repo.status(i))
	}
}
