package analytics

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrTime(t time.Time) *time.Time { return &t }

func ptrInt64(v int64) *int64 { return &v }

func TestComputeEngagementDurations(t *testing.T) {
	m1 := uuid.New()
	m2 := uuid.New()
	base := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC) // a Monday

	records := []SessionRecord{
		// Explicit duration wins.
		{MeetingID: m1, JoinedAt: base, DurationSeconds: ptrInt64(125)},
		// Derived from leftAt.
		{MeetingID: m2, JoinedAt: base.Add(24 * time.Hour), LeftAt: ptrTime(base.Add(24*time.Hour + 300*time.Second))},
	}

	got := ComputeEngagement(records)
	assert.Equal(t, 2, got.TotalMeetings)
	assert.Equal(t, int64(425), got.TotalTimeSeconds)
	assert.Equal(t, int64(212), got.AvgMeetingTimeSeconds)
}

func TestComputeEngagementScheduledFallback(t *testing.T) {
	m := uuid.New()
	joined := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	records := []SessionRecord{
		// Never closed, but the meeting completed: fall back to the scheduled length.
		{MeetingID: m, JoinedAt: joined, ScheduledSeconds: 1800, MeetingCompleted: true},
		// Never closed and the meeting is still live: not finalized, skip.
		{MeetingID: uuid.New(), JoinedAt: joined, ScheduledSeconds: 1800},
	}

	got := ComputeEngagement(records)
	assert.Equal(t, 1, got.TotalMeetings)
	assert.Equal(t, int64(1800), got.TotalTimeSeconds)
	assert.Equal(t, int64(1800), got.AvgMeetingTimeSeconds)
}

func TestComputeEngagementWeeklyPattern(t *testing.T) {
	m := uuid.New()
	monday := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	records := []SessionRecord{
		{MeetingID: m, JoinedAt: monday, DurationSeconds: ptrInt64(60)},
		{MeetingID: m, JoinedAt: monday.Add(7 * 24 * time.Hour), DurationSeconds: ptrInt64(60)},
		{MeetingID: m, JoinedAt: monday.Add(2 * 24 * time.Hour), DurationSeconds: ptrInt64(60)}, // Wednesday
	}

	got := ComputeEngagement(records)
	require.Len(t, got.WeeklyPattern, 7, "every day bucket is always present")
	assert.Equal(t, 2, got.WeeklyPattern["monday"])
	assert.Equal(t, 1, got.WeeklyPattern["wednesday"])
	assert.Equal(t, 0, got.WeeklyPattern["sunday"])
}

func TestComputeEngagementWeeklyPatternUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// Tuesday 08:00 in UTC+10 is Monday 22:00 UTC; the bucket must be Monday.
	joined := time.Date(2026, 3, 10, 8, 0, 0, 0, loc)

	got := ComputeEngagement([]SessionRecord{
		{MeetingID: uuid.New(), JoinedAt: joined, DurationSeconds: ptrInt64(60)},
	})
	assert.Equal(t, 1, got.WeeklyPattern["monday"])
	assert.Equal(t, 0, got.WeeklyPattern["tuesday"])
	assert.Equal(t, []int{22}, got.PeakHours)
}

func TestComputeEngagementPeakHours(t *testing.T) {
	m := uuid.New()
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	at := func(hour, n int) []SessionRecord {
		out := make([]SessionRecord, n)
		for i := range out {
			out[i] = SessionRecord{MeetingID: m, JoinedAt: day.Add(time.Duration(hour) * time.Hour), DurationSeconds: ptrInt64(60)}
		}
		return out
	}

	var records []SessionRecord
	records = append(records, at(14, 3)...)
	records = append(records, at(9, 2)...)
	records = append(records, at(16, 2)...) // ties with hour 9; earlier hour wins the slot order
	records = append(records, at(20, 1)...)

	got := ComputeEngagement(records)
	assert.Equal(t, []int{14, 9, 16}, got.PeakHours)
}

func TestComputeEngagementDeterministic(t *testing.T) {
	m1, m2 := uuid.New(), uuid.New()
	base := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	records := []SessionRecord{
		{MeetingID: m1, JoinedAt: base, DurationSeconds: ptrInt64(125)},
		{MeetingID: m2, JoinedAt: base.Add(time.Hour), LeftAt: ptrTime(base.Add(2 * time.Hour))},
		{MeetingID: m1, JoinedAt: base.Add(48 * time.Hour), ScheduledSeconds: 900, MeetingCompleted: true},
	}

	first := ComputeEngagement(records)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ComputeEngagement(records))
	}
}

func TestComputeEngagementEmpty(t *testing.T) {
	got := ComputeEngagement(nil)
	assert.Equal(t, 0, got.TotalMeetings)
	assert.Equal(t, int64(0), got.TotalTimeSeconds)
	assert.Equal(t, int64(0), got.AvgMeetingTimeSeconds)
	assert.Empty(t, got.PeakHours)
	assert.Len(t, got.WeeklyPattern, 7)
}
