package enrollment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollment_SetProgress(t *testing.T) {
	now := time.Date(2024, time.March, 3, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		progress      int
		wantProgress  int
		wantCompleted bool
	}{
		{name: "negative clamps to 0", progress: -10, wantProgress: 0},
		{name: "in range", progress: 42, wantProgress: 42},
		{name: "100 completes", progress: 100, wantProgress: 100, wantCompleted: true},
		{name: "above 100 clamps and completes", progress: 250, wantProgress: 100, wantCompleted: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var enr Enrollment
			enr.SetProgress(tt.progress, now)
			assert.Equal(t, tt.wantProgress, enr.Progress)
			assert.Equal(t, tt.wantCompleted, enr.Completed())
		})
	}
}

func TestEnrollment_SetProgress_keepsCompletedAt(t *testing.T) {
	first := time.Date(2024, time.March, 3, 10, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)

	var enr Enrollment
	enr.SetProgress(100, first)
	require.NotNil(t, enr.CompletedAt)

	enr.SetProgress(60, later)
	assert.Equal(t, 60, enr.Progress)
	require.NotNil(t, enr.CompletedAt)
	assert.True(t, enr.CompletedAt.Equal(first))

	enr.SetProgress(100, later)
	assert.True(t, enr.CompletedAt.Equal(first), "CompletedAt must not move once set")
}
