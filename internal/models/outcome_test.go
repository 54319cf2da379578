package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeStatus_Valid(t *testing.T) {
	for _, s := range []OutcomeStatus{OutcomeTested, OutcomeConverted, OutcomeSkipped, OutcomeFailed, OutcomeDeferred} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, OutcomeStatus("").Valid())
	assert.False(t, OutcomeStatus("done").Valid())
}

func TestOutcome_Validate(t *testing.T) {
	o := &Outcome{Path: "/media/movie.mkv", Status: OutcomeConverted}
	require.NoError(t, o.Validate())

	missing := &Outcome{Status: OutcomeSkipped}
	assert.Error(t, missing.Validate())

	badStatus := &Outcome{Path: "/media/movie.mkv", Status: "done"}
	assert.Error(t, badStatus.Validate())
}

func TestOutcome_BeforeCreate(t *testing.T) {
	o := &Outcome{Path: "/media/movie.mkv", Status: OutcomeTested}
	require.NoError(t, o.BeforeCreate(nil))
	assert.False(t, o.ID.IsZero())

	invalid := &Outcome{}
	assert.Error(t, invalid.BeforeCreate(nil))
}
