package analytics

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SessionRecord is one finalized participant session used as input for
// engagement computation. DurationSeconds is nil when the session was never
// explicitly closed; in that case ScheduledSeconds is used as a fallback if
// the owning meeting has completed.
type SessionRecord struct {
	MeetingID        uuid.UUID
	JoinedAt         time.Time
	LeftAt           *time.Time
	DurationSeconds  *int64
	ScheduledSeconds int64
	MeetingCompleted bool
}

// Engagement is the per-user summary derived from finalized sessions.
type Engagement struct {
	TotalMeetings         int            `json:"total_meetings"`
	TotalTimeSeconds      int64          `json:"total_time_seconds"`
	AvgMeetingTimeSeconds int64          `json:"avg_meeting_time_seconds"`
	WeeklyPattern         map[string]int `json:"weekly_pattern"`
	PeakHours             []int          `json:"peak_hours"`
}

// Day-of-week buckets are keyed by lowercase English day names. All bucketing
// uses UTC so the same session set always produces the same summary regardless
// of where the computation runs.
var dayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// resolveDuration returns the effective watch time for a record, or -1 when
// the record carries no usable duration and must be skipped.
func resolveDuration(rec SessionRecord) int64 {
	if rec.DurationSeconds != nil {
		if *rec.DurationSeconds < 0 {
			return 0
		}
		return *rec.DurationSeconds
	}
	if rec.LeftAt != nil {
		d := int64(rec.LeftAt.Sub(rec.JoinedAt) / time.Second)
		if d < 0 {
			d = 0
		}
		return d
	}
	if rec.MeetingCompleted {
		return rec.ScheduledSeconds
	}
	return -1
}

// ComputeEngagement folds a user's finalized sessions into an engagement
// summary. It is a pure function of its input: recomputing over the same
// record set always yields the same result.
func ComputeEngagement(records []SessionRecord) Engagement {
	weekly := make(map[string]int, 7)
	for _, name := range dayNames {
		weekly[name] = 0
	}

	meetings := make(map[uuid.UUID]struct{})
	var hourCounts [24]int
	var total int64
	var counted int

	for _, rec := range records {
		dur := resolveDuration(rec)
		if dur < 0 {
			continue
		}
		counted++
		total += dur
		meetings[rec.MeetingID] = struct{}{}

		joined := rec.JoinedAt.UTC()
		weekly[dayNames[int(joined.Weekday())]]++
		hourCounts[joined.Hour()]++
	}

	out := Engagement{
		TotalMeetings:    len(meetings),
		TotalTimeSeconds: total,
		WeeklyPattern:    weekly,
		PeakHours:        peakHours(hourCounts),
	}
	if counted > 0 {
		out.AvgMeetingTimeSeconds = total / int64(counted)
	}
	return out
}

// peakHours returns up to the 3 hours-of-day with the most joins, ties broken
// by the earlier hour. Hours with no joins are never reported.
func peakHours(counts [24]int) []int {
	hours := make([]int, 0, 24)
	for h, n := range counts {
		if n > 0 {
			hours = append(hours, h)
		}
	}
	sort.Slice(hours, func(i, j int) bool {
		if counts[hours[i]] != counts[hours[j]] {
			return counts[hours[i]] > counts[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > 3 {
		hours = hours[:3]
	}
	return hours
}
