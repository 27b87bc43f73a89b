package grade

import (
	"encoding/json"
	"slices"
)

// DefaultPassMark is the minimum final sum that yields a numeric grade.
const DefaultPassMark = 18.0

// Outcome is the kind of verdict for one appeal.
type Outcome string

const (
	OutcomeGrade   Outcome = "GRADE"
	OutcomeAbsent  Outcome = "ABSENT"
	OutcomeFailed  Outcome = "RESPINTO"
	OutcomePending Outcome = "PENDING"
)

// Verdict is the final outcome of one student for the current appeal.
// Grade is meaningful only when Outcome is OutcomeGrade.
type Verdict struct {
	Outcome Outcome
	Grade   float64
}

// String renders numeric grades as numbers and outcomes by name.
func (v Verdict) String() string {
	if v.Outcome == OutcomeGrade {
		return FormatScore(v.Grade)
	}
	return string(v.Outcome)
}

// MarshalJSON encodes a numeric grade as a JSON number, anything else as a string.
func (v Verdict) MarshalJSON() ([]byte, error) {
	if v.Outcome == OutcomeGrade {
		return json.Marshal(v.Grade)
	}
	return json.Marshal(string(v.Outcome))
}

// CurrentWritten returns the written entry of the current session, falling
// back to the most recent OK entry.
func CurrentWritten(history []WrittenEntry, session string) (WrittenEntry, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if session != "" && history[i].SessionKey == session {
			return history[i], true
		}
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Status == WrittenOK {
			return history[i], true
		}
	}
	return WrittenEntry{}, false
}

// CurrentProject returns the completed project entry of the current session,
// falling back to the most recent completed entry.
func CurrentProject(history []ProjectEntry, session string) (ProjectEntry, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if session != "" && history[i].SessionKey == session && history[i].Flag == FlagOK {
			return history[i], true
		}
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Flag == FlagOK {
			return history[i], true
		}
	}
	return ProjectEntry{}, false
}

// HasRejected reports whether the student refused an outcome of the current appeal.
func (r *Record) HasRejected(s Session) bool {
	return (s.Written != "" && slices.Contains(r.Rejected.Written, s.Written)) ||
		(s.Project != "" && slices.Contains(r.Rejected.Project, s.Project))
}

// Decide computes the appeal verdict for one record.
func Decide(r *Record, s Session, passMark float64) Verdict {
	if r.HasRejected(s) {
		return Verdict{Outcome: OutcomeFailed}
	}

	written, hasWritten := CurrentWritten(r.WrittenGrades, s.Written)
	project, hasProject := CurrentProject(r.ProjectGrades, s.Project)

	switch {
	case !hasWritten:
		return Verdict{Outcome: OutcomeAbsent}
	case !hasProject:
		return Verdict{Outcome: OutcomePending}
	case written.Status == WrittenAbsent:
		return Verdict{Outcome: OutcomeAbsent}
	case written.Status == WrittenFailed || written.Status == WrittenRetired:
		return Verdict{Outcome: OutcomeFailed}
	}

	sum := deref(written.Score) + project.Total()
	if sum >= passMark {
		return Verdict{Outcome: OutcomeGrade, Grade: sum}
	}
	return Verdict{Outcome: OutcomeFailed}
}
