// Package schedule defines the scheduled-job bounded context.
// A Job is a persisted timer definition: when its schedule elapses, the
// scheduler emits an AgentEvent carrying the job's action descriptor; the
// scheduler never executes the action itself.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/greybell/butler/pkg/cron"
	"github.com/greybell/butler/pkg/domain"
)

// ---------------------------------------------------------------------------
// Job aggregate
// ---------------------------------------------------------------------------

// ActionSpec is the action descriptor a firing job places into its event
// payload. It is routed like any other payload data, not executed directly.
type ActionSpec struct {
	Type   string         `json:"action_type"`
	Params domain.Payload `json:"params,omitempty"`
}

// Job is a persisted timer definition.
type Job struct {
	JobID      domain.EntityID     `json:"job_id"`
	Name       string              `json:"name"`
	Type       domain.ScheduleType `json:"schedule_type"`
	Expression string              `json:"expression"`
	Action     ActionSpec          `json:"action"`
	Enabled    bool                `json:"enabled"`
	LastRun    *domain.Timestamp   `json:"last_run"`
	RunCount   int64               `json:"run_count,omitempty"`
	CreatedAt  domain.Timestamp    `json:"created_at"`
}

// NewJob creates an enabled job with a fresh identity.
func NewJob(name string, scheduleType domain.ScheduleType, expression string, action ActionSpec) *Job {
	return &Job{
		JobID:      domain.NewID(),
		Name:       name,
		Type:       scheduleType,
		Expression: expression,
		Action:     action,
		Enabled:    true,
		CreatedAt:  domain.Now(),
	}
}

// Validate checks the schedule type and parses the expression, so a bad
// definition surfaces to the caller of AddJob rather than inside the loop.
func (j *Job) Validate() error {
	if j.Name == "" {
		return ErrEmptyName
	}

	switch j.Type {
	case domain.ScheduleOneShot:
		if _, err := time.Parse(time.RFC3339, j.Expression); err != nil {
			return fmt.Errorf("%w: %q is not an RFC 3339 timestamp", ErrBadExpression, j.Expression)
		}
	case domain.ScheduleInterval:
		if _, err := ParseInterval(j.Expression); err != nil {
			return err
		}
	case domain.ScheduleCron:
		if _, err := cron.Parse(j.Expression); err != nil {
			return fmt.Errorf("%w: %v", ErrBadExpression, err)
		}
	default:
		return ErrInvalidScheduleType
	}
	return nil
}

// FireAt parses the one-shot expression. Only valid for ScheduleOneShot jobs.
func (j *Job) FireAt() (time.Time, error) {
	return time.Parse(time.RFC3339, j.Expression)
}

// MarkFired records one firing of the job.
func (j *Job) MarkFired(at time.Time) {
	ts := domain.TimestampFrom(at)
	j.LastRun = &ts
	j.RunCount++
}

// Pause disables the job.
func (j *Job) Pause() { j.Enabled = false }

// Resume re-enables the job.
func (j *Job) Resume() { j.Enabled = true }

// ---------------------------------------------------------------------------
// Interval expressions
// ---------------------------------------------------------------------------

// intervalPattern accepts a plain integer with a single unit suffix:
// seconds, minutes, hours, or days. Composite Go durations like "1h30m"
// are rejected as configuration errors.
var intervalPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseInterval parses an interval expression like "30s", "15m", "1h", "2d".
func ParseInterval(expression string) (time.Duration, error) {
	m := intervalPattern.FindStringSubmatch(expression)
	if m == nil {
		return 0, fmt.Errorf("%w: %q is not <integer><s|m|h|d>", ErrBadExpression, expression)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: interval must be a positive integer, got %q", ErrBadExpression, m[1])
	}

	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	default: // "d"
		return time.Duration(n) * 24 * time.Hour, nil
	}
}

// ---------------------------------------------------------------------------
// Repository interface
// ---------------------------------------------------------------------------

// Repository persists Job aggregates, one record per job.
type Repository interface {
	FindByID(id domain.EntityID) (*Job, error)
	FindAll() ([]*Job, error)
	Save(job *Job) error
	Delete(id domain.EntityID) error
}

// ---------------------------------------------------------------------------
// Domain errors
// ---------------------------------------------------------------------------

// JobError is a schedule-context domain error.
type JobError string

func (e JobError) Error() string { return string(e) }

const (
	ErrEmptyName           JobError = "job name cannot be empty"
	ErrInvalidScheduleType JobError = "unknown schedule type"
	ErrBadExpression       JobError = "invalid schedule expression"
	ErrJobNotFound         JobError = "job not found"
)
