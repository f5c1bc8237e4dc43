package ui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Apply(t *testing.T) {
	// Given: a fresh tracker
	p := NewProgressTracker()
	assert.Equal(t, StageCounting, p.Stats().Stage)

	// When: fetch events arrive
	p.Apply(ProgressEvent{Stage: StageFetching, Current: 1, Total: 4, Records: 10, Message: "offset 0"})
	p.Apply(ProgressEvent{Stage: StageFetching, Current: 2, Total: 4, Records: 20})

	// Then: the snapshot reflects the latest event and keeps the last message
	stats := p.Stats()
	assert.Equal(t, StageFetching, stats.Stage)
	assert.Equal(t, 2, stats.Current)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 20, stats.Records)
	assert.Equal(t, "offset 0", stats.Message)
	assert.InDelta(t, 0.5, stats.Progress, 0.001)
}

func TestProgressTracker_ProgressCapped(t *testing.T) {
	p := NewProgressTracker()

	p.Apply(ProgressEvent{Stage: StageFetching, Current: 5, Total: 4})

	assert.Equal(t, 1.0, p.Progress())
	assert.Zero(t, p.Stats().ETA)
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	p := NewProgressTracker()

	p.SetStage(StageWriting, 0)

	assert.Equal(t, 0.0, p.Progress())
	assert.Zero(t, p.Stats().ETA)
}

func TestProgressTracker_Errors(t *testing.T) {
	// Given: a tracker
	p := NewProgressTracker()

	// When: recording one error and two warnings
	p.AddError(ErrorEvent{Err: errors.New("e1")})
	p.AddError(ErrorEvent{Err: errors.New("w1"), IsWarn: true})
	p.AddError(ErrorEvent{Err: errors.New("w2"), IsWarn: true})

	// Then: they are counted separately
	stats := p.Stats()
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 2, stats.WarnCount)
	assert.Len(t, p.Errors(), 1)
	assert.Len(t, p.Warnings(), 2)
}
