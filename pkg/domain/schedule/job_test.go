package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greybell/butler/pkg/domain"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		expr string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"15m", 15 * time.Minute},
		{"1h", time.Hour},
		{"2d", 48 * time.Hour},
		{"1s", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseInterval(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIntervalRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{"", "15", "m", "1h30m", "-5m", "0s", "5w", "1.5h", " 5m"} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseInterval(expr)
			assert.ErrorIs(t, err, ErrBadExpression)
		})
	}
}

func TestJobValidate(t *testing.T) {
	future := time.Now().Add(time.Hour).Format(time.RFC3339)

	tests := []struct {
		name    string
		job     *Job
		wantErr error
	}{
		{
			name: "valid one-shot",
			job:  NewJob("once", domain.ScheduleOneShot, future, ActionSpec{}),
		},
		{
			name: "valid interval",
			job:  NewJob("repeat", domain.ScheduleInterval, "15m", ActionSpec{}),
		},
		{
			name: "valid cron",
			job:  NewJob("daily", domain.ScheduleCron, "0 9 * * *", ActionSpec{}),
		},
		{
			name:    "empty name",
			job:     NewJob("", domain.ScheduleInterval, "15m", ActionSpec{}),
			wantErr: ErrEmptyName,
		},
		{
			name:    "one-shot with non-timestamp",
			job:     NewJob("once", domain.ScheduleOneShot, "tomorrow", ActionSpec{}),
			wantErr: ErrBadExpression,
		},
		{
			name:    "interval with cron expression",
			job:     NewJob("repeat", domain.ScheduleInterval, "0 9 * * *", ActionSpec{}),
			wantErr: ErrBadExpression,
		},
		{
			name:    "cron with too few fields",
			job:     NewJob("daily", domain.ScheduleCron, "0 9 *", ActionSpec{}),
			wantErr: ErrBadExpression,
		},
		{
			name:    "unknown schedule type",
			job:     NewJob("odd", "weekly", "whenever", ActionSpec{}),
			wantErr: ErrInvalidScheduleType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestJobMarkFired(t *testing.T) {
	job := NewJob("repeat", domain.ScheduleInterval, "15m", ActionSpec{})
	require.Nil(t, job.LastRun)
	require.EqualValues(t, 0, job.RunCount)

	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	job.MarkFired(first)
	require.NotNil(t, job.LastRun)
	assert.True(t, job.LastRun.Equal(first))
	assert.EqualValues(t, 1, job.RunCount)

	job.MarkFired(first.Add(15 * time.Minute))
	assert.EqualValues(t, 2, job.RunCount)
}

func TestJobPauseResume(t *testing.T) {
	job := NewJob("repeat", domain.ScheduleInterval, "15m", ActionSpec{})
	assert.True(t, job.Enabled)

	job.Pause()
	assert.False(t, job.Enabled)

	job.Resume()
	assert.True(t, job.Enabled)
}

func TestJobFireAt(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 30, 0, 0, time.UTC)
	job := NewJob("once", domain.ScheduleOneShot, at.Format(time.RFC3339), ActionSpec{})

	got, err := job.FireAt()
	require.NoError(t, err)
	assert.True(t, got.Equal(at))
}
