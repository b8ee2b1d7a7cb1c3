package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pruneStore struct {
	removed int64
	err     error
	pruned  chan struct{}
}

func (s *pruneStore) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (s *pruneStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (s *pruneStore) Clear(context.Context) error                              { return nil }
func (s *pruneStore) Close() error                                             { return nil }

func (s *pruneStore) Prune(context.Context) (int64, error) {
	if s.pruned != nil {
		select {
		case s.pruned <- struct{}{}:
		default:
		}
	}
	return s.removed, s.err
}

func TestPruneJob(t *testing.T) {
	job := NewPruneJob(&pruneStore{removed: 3}, quietLogger())
	assert.Equal(t, "cache_prune", job.Name())
	assert.NoError(t, job.Run(context.Background()))

	failing := NewPruneJob(&pruneStore{err: errors.New("locked")}, quietLogger())
	assert.EqualError(t, failing.Run(context.Background()), "locked")
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(quietLogger())
	assert.Error(t, s.AddJob("every now and then", NewPruneJob(&pruneStore{}, quietLogger())))
}

func TestSchedulerRunsJob(t *testing.T) {
	store := &pruneStore{pruned: make(chan struct{}, 1)}
	s := NewScheduler(quietLogger())
	require.NoError(t, s.AddJob("@every 1s", NewPruneJob(store, quietLogger())))

	s.Start()
	defer s.Stop()

	select {
	case <-store.pruned:
	case <-time.After(5 * time.Second):
		t.Fatal("prune job did not run")
	}
}
