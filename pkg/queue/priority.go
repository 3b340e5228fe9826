package queue

import "time"

// Priority policy: meetings always outrank matters, and recency dominates
// within a class. Distance is measured in whole days between now and the
// meeting date, regardless of direction.
const (
	meetingPriorityBase = 150
	meetingPriorityMin  = 0
	matterPriorityBase  = 50
	matterPriorityMin   = -100
)

func daysBetween(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

// MeetingPriority returns max(0, 150 − days between now and the meeting).
func MeetingPriority(meetingDate, now time.Time) int {
	p := meetingPriorityBase - daysBetween(meetingDate, now)
	if p < meetingPriorityMin {
		return meetingPriorityMin
	}
	return p
}

// MatterPriority returns max(−100, 50 − days between now and the matter's
// representative meeting).
func MatterPriority(representativeMeetingDate, now time.Time) int {
	p := matterPriorityBase - daysBetween(representativeMeetingDate, now)
	if p < matterPriorityMin {
		return matterPriorityMin
	}
	return p
}
