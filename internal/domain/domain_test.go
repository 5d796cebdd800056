package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected Severity
	}{
		{"error", SeverityError},
		{"Error", SeverityError},
		{"warning", SeverityWarning},
		{"WARNING", SeverityWarning},
		{" warning ", SeverityWarning},
		{"", SeverityError},
		{"alert", SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSeverity(tt.input))
		})
	}
}

func TestReportHasLocation(t *testing.T) {
	assert.False(t, (&Report{Message: "no loc"}).HasLocation())
	assert.False(t, (&Report{File: "/a.re"}).HasLocation())
	assert.True(t, (&Report{File: "/a.re", Line: 1, Column: 1}).HasLocation())
}

func TestProgressDone(t *testing.T) {
	assert.True(t, Progress{State: ProgressSuccess}.Done())
	assert.True(t, Progress{State: ProgressFailed}.Done())
	assert.True(t, Progress{State: ProgressInterrupted}.Done())
	assert.False(t, Progress{State: ProgressWaiting}.Done())
	assert.False(t, Progress{State: ProgressInProgress, Complete: 3, Remaining: 1}.Done())
}

func TestEventConstructors(t *testing.T) {
	bs := NewBuildSuccess(2, 3, true)
	assert.Equal(t, "build_success", bs.Type)
	assert.Equal(t, SchemaVersion, bs.SchemaVersion)
	assert.Equal(t, 2, bs.Build)
	assert.NotEmpty(t, bs.Timestamp)

	fr := NewFullReload("error_cleared")
	assert.Equal(t, "full_reload", fr.Type)
	assert.Equal(t, "error_cleared", fr.Reason)

	re := NewRPCError(errors.New("boom"), true)
	assert.Equal(t, "rpc_error", re.Type)
	assert.Equal(t, "boom", re.Message)
	assert.True(t, re.Fatal)

	de := NewDiagnosticEvent("add", Report{ID: 4, Message: "m", Severity: SeverityError})
	assert.Equal(t, "diagnostic", de.Type)
	assert.Equal(t, 4, de.Report.ID)
}
