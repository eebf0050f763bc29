package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// applierFunc adapts a function to Applier.
type applierFunc func(ctx context.Context, req ApplyRequest) (ApplyResult, error)

func (f applierFunc) Apply(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	return f(ctx, req)
}

func TestPipeline_HappyPath(t *testing.T) {
	p := NewPipeline()
	assert.Equal(t, StateUploading, p.State())

	require.NoError(t, p.Parsed(reviewFixture()))
	assert.Equal(t, StateParsed, p.State())

	require.NoError(t, p.Edit(func(s *Session) error { return s.SetIncluded(3, false) }))

	var got ApplyRequest
	res, err := p.Apply(context.Background(), applierFunc(func(_ context.Context, req ApplyRequest) (ApplyResult, error) {
		got = req
		return ApplyResult{Stats: ApplyStats{InventoryUpdated: 3, RowsSkipped: 1}, Errors: []ApplyRowError{}}, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.InventoryUpdated)
	assert.Equal(t, StateCompleted, p.State())
	assert.False(t, got.Rows[2].Included)

	stored, ok := p.Result()
	require.True(t, ok)
	assert.Equal(t, res, stored)

	assert.ErrorIs(t, p.Edit(func(*Session) error { return nil }), ErrInvalidTransition)
	assert.ErrorIs(t, p.Abandon(), ErrInvalidTransition)
}

func TestPipeline_FatalApplyKeepsEdits(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.Parsed(reviewFixture()))
	require.NoError(t, p.Edit(func(s *Session) error { return s.SetQuantityOverride(1, 77) }))

	fatal := &LocationInvalidError{LocationID: "L1"}
	_, err := p.Apply(context.Background(), applierFunc(func(context.Context, ApplyRequest) (ApplyResult, error) {
		return ApplyResult{}, fatal
	}))
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, StateParsed, p.State())
	assert.Equal(t, fatal, p.LastError())

	var q int
	require.NoError(t, p.Edit(func(s *Session) error {
		var err error
		q, err = s.FinalQuantity(1)
		return err
	}))
	assert.Equal(t, 77, q)

	_, ok := p.Result()
	assert.False(t, ok)
}

func TestPipeline_ConcurrentApplyRejected(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.Parsed(reviewFixture()))

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := p.Apply(context.Background(), applierFunc(func(context.Context, ApplyRequest) (ApplyResult, error) {
			close(started)
			<-release
			return ApplyResult{}, nil
		}))
		done <- err
	}()

	<-started
	assert.Equal(t, StateApplying, p.State())
	_, err := p.Apply(context.Background(), applierFunc(func(context.Context, ApplyRequest) (ApplyResult, error) {
		t.Error("second apply must not run")
		return ApplyResult{}, nil
	}))
	assert.ErrorIs(t, err, ErrApplyInProgress)
	assert.ErrorIs(t, p.Abandon(), ErrApplyInProgress)
	assert.ErrorIs(t, p.Edit(func(*Session) error { return nil }), ErrInvalidTransition)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateCompleted, p.State())
}

func TestPipeline_ParseFailureAndAbandon(t *testing.T) {
	p := NewPipeline()
	_, err := p.View(ViewOptions{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	bad := errors.New("invalid file: empty file")
	p.ParseFailed(bad)
	assert.Equal(t, StateUploading, p.State())
	assert.Equal(t, bad, p.LastError())

	require.NoError(t, p.Parsed(reviewFixture()))
	assert.NoError(t, p.LastError())

	v, err := p.View(ViewOptions{Filter: FilterNew})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Total)

	require.NoError(t, p.Abandon())
	assert.Equal(t, StateAbandoned, p.State())
	assert.ErrorIs(t, p.Parsed(reviewFixture()), ErrInvalidTransition)
}
