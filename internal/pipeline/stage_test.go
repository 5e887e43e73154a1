package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestStepState_Lifecycle tests the transitions of a step state
func TestStepState_Lifecycle(t *testing.T) {
	s := NewStepState("correct", "Correct FTE series")
	status, _, _ := s.Snapshot()
	assert.Equal(t, StepStatusPending, status)
	assert.Zero(t, s.Duration())

	s.Start()
	status, _, _ = s.Snapshot()
	assert.Equal(t, StepStatusActive, status)

	time.Sleep(time.Millisecond)
	s.Complete("1 entity corrected")
	status, msg, _ := s.Snapshot()
	assert.Equal(t, StepStatusCompleted, status)
	assert.Equal(t, "1 entity corrected", msg)
	assert.Greater(t, s.Duration(), time.Duration(0))
}

func TestStepState_FailAndSkip(t *testing.T) {
	s := NewStepState("trend", "Fit metric trends")
	s.Start()
	s.Fail(errors.New("boom"))
	status, _, errMsg := s.Snapshot()
	assert.Equal(t, StepStatusFailed, status)
	assert.Equal(t, "boom", errMsg)

	skipped := NewStepState("rediagnose", "Re-diagnose")
	skipped.Skip("previous step failed")
	status, msg, _ := skipped.Snapshot()
	assert.Equal(t, StepStatusSkipped, status)
	assert.Equal(t, "previous step failed", msg)
}
