package domain

import "time"

// Phase is where an exam sits relative to its time window.
type Phase string

const (
	PhaseUpcoming Phase = "upcoming"
	PhaseActive   Phase = "active"
	PhaseEnded    Phase = "ended"
)

// PhaseAt decides the phase of a [start, end) window at the given
// instant. Pure and total: every instant maps to exactly one phase, and
// as now advances the phase only moves upcoming -> active -> ended.
func PhaseAt(start, end, now time.Time) Phase {
	switch {
	case now.Before(start):
		return PhaseUpcoming
	case now.Before(end):
		return PhaseActive
	default:
		return PhaseEnded
	}
}

// PhaseOf is PhaseAt applied to an exam.
func (e Exam) PhaseOf(now time.Time) Phase {
	return PhaseAt(e.StartTime, e.EndTime, now)
}

// ExamView is an exam tagged with its phase at read time.
type ExamView struct {
	Exam
	Status Phase `json:"status"`
}
