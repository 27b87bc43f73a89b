package grade

import (
	"fmt"
	"strconv"

	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// WrittenStatus is the derived outcome of one written exam sitting.
type WrittenStatus string

const (
	WrittenOK      WrittenStatus = "OK"
	WrittenFailed  WrittenStatus = "FAILED"
	WrittenRetired WrittenStatus = "RETIRED"
	WrittenAbsent  WrittenStatus = "ABSENT"
)

// IsValid reports whether the status is one of the known values.
func (s WrittenStatus) IsValid() bool {
	switch s {
	case WrittenOK, WrittenFailed, WrittenRetired, WrittenAbsent:
		return true
	}
	return false
}

// CompletionFlag tracks which halves of a project evaluation have arrived.
type CompletionFlag string

const (
	// FlagNoReport: leaderboard score present, report still missing.
	FlagNoReport CompletionFlag = "NO_REPORT"
	// FlagNoLeaderboard: report present, no leaderboard score yet.
	FlagNoLeaderboard CompletionFlag = "NO_LEADERBOARD"
	// FlagOK: both team and report scores present.
	FlagOK CompletionFlag = "OK"
	// FlagRejected: the student refused this project outcome. Never OK.
	FlagRejected CompletionFlag = "REJECTED"
)

// IsValid reports whether the flag is one of the known values.
func (f CompletionFlag) IsValid() bool {
	switch f {
	case FlagNoReport, FlagNoLeaderboard, FlagOK, FlagRejected:
		return true
	}
	return false
}

// Payload is the raw ingested row kept for audit.
type Payload map[string]string

// Clone returns an independent copy; nil stays nil.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Score returns a pointer to v, for optional numeric fields.
func Score(v float64) *float64 {
	return &v
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRIES
// ══════════════════════════════════════════════════════════════════════════════

// WrittenEntry is one written exam appeal in a student's history.
type WrittenEntry struct {
	SessionKey string        `json:"session_key" bson:"session_key"`
	Score      *float64      `json:"score,omitempty" bson:"score,omitempty"`
	Status     WrittenStatus `json:"status" bson:"status"`
	RawSource  Payload       `json:"raw_source,omitempty" bson:"raw_source,omitempty"`
}

// ProjectEntry is one project evaluation round in a student's history.
type ProjectEntry struct {
	SessionKey  string         `json:"session_key" bson:"session_key"`
	TeamScore   *float64       `json:"team_score,omitempty" bson:"team_score,omitempty"`
	ReportScore *float64       `json:"report_score,omitempty" bson:"report_score,omitempty"`
	ReportBonus *float64       `json:"report_bonus,omitempty" bson:"report_bonus,omitempty"`
	Flag        CompletionFlag `json:"completion_flag" bson:"completion_flag"`
	TeamInfo    Payload        `json:"team_info,omitempty" bson:"team_info,omitempty"`
	ReportInfo  Payload        `json:"report_info,omitempty" bson:"report_info,omitempty"`
}

// Total is team + report + bonus, absent parts counting as zero.
func (p ProjectEntry) Total() float64 {
	return deref(p.TeamScore) + deref(p.ReportScore) + deref(p.ReportBonus)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record field names accepted by Repository.ReplaceField.
const (
	FieldWrittenGrades = "written_grades"
	FieldProjectGrades = "project_grades"
	FieldRejected      = "rejected"
)

// Rejection lists the session keys whose outcome the student refused.
type Rejection struct {
	Written []string `json:"written,omitempty" bson:"written,omitempty"`
	Project []string `json:"project,omitempty" bson:"project,omitempty"`
}

// Record is the per-student grade document.
type Record struct {
	InternalID    string         `json:"internal_id" bson:"_id"`
	Name          string         `json:"name,omitempty" bson:"name,omitempty"`
	Surname       string         `json:"surname,omitempty" bson:"surname,omitempty"`
	WrittenGrades []WrittenEntry `json:"written_grades" bson:"written_grades"`
	ProjectGrades []ProjectEntry `json:"project_grades" bson:"project_grades"`
	Rejected      Rejection      `json:"rejected" bson:"rejected"`
}

// NewRecord creates an empty record for a freshly enrolled student.
func NewRecord(internalID, name, surname string) (*Record, error) {
	if internalID == "" {
		return nil, shared.NewDomainError("grade", "NewRecord", shared.ErrEmptyValue, "internal id is empty")
	}
	return &Record{
		InternalID:    internalID,
		Name:          name,
		Surname:       surname,
		WrittenGrades: []WrittenEntry{},
		ProjectGrades: []ProjectEntry{},
	}, nil
}

// BestWrittenScore returns the highest numeric written score, if any.
func (r *Record) BestWrittenScore() (float64, bool) {
	best, found := 0.0, false
	for _, w := range r.WrittenGrades {
		if w.Score != nil && (!found || *w.Score > best) {
			best, found = *w.Score, true
		}
	}
	return best, found
}

// ══════════════════════════════════════════════════════════════════════════════
// APPEND-OR-AMEND
// ══════════════════════════════════════════════════════════════════════════════

// indexOf returns the position of the entry keyed by session, or -1.
// More than one match means the history is corrupt.
func indexOf(n int, keyAt func(int) string, session, op string) (int, error) {
	found := -1
	for i := 0; i < n; i++ {
		if keyAt(i) != session {
			continue
		}
		if found >= 0 {
			return -1, shared.NewDomainError("grade", op, shared.ErrAmbiguousMerge,
				fmt.Sprintf("session %q appears at positions %d and %d", session, found, i))
		}
		found = i
	}
	return found, nil
}

func writtenIndex(history []WrittenEntry, session string) (int, error) {
	return indexOf(len(history), func(i int) string { return history[i].SessionKey }, session, "AmendWritten")
}

func projectIndex(history []ProjectEntry, session string) (int, error) {
	return indexOf(len(history), func(i int) string { return history[i].SessionKey }, session, "AmendProject")
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func sameScore(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// samePayload treats nil and empty as equal; stores drop empty maps.
func samePayload(a, b Payload) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func (w WrittenEntry) equal(o WrittenEntry) bool {
	return w.SessionKey == o.SessionKey && w.Status == o.Status &&
		sameScore(w.Score, o.Score) && samePayload(w.RawSource, o.RawSource)
}

func (p ProjectEntry) equal(o ProjectEntry) bool {
	return p.SessionKey == o.SessionKey && p.Flag == o.Flag &&
		sameScore(p.TeamScore, o.TeamScore) &&
		sameScore(p.ReportScore, o.ReportScore) &&
		sameScore(p.ReportBonus, o.ReportBonus) &&
		samePayload(p.TeamInfo, o.TeamInfo) &&
		samePayload(p.ReportInfo, o.ReportInfo)
}

// FormatScore renders a score without trailing zeros ("12.88", "30").
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}


// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	cp.WrittenGrades = make([]WrittenEntry, len(r.WrittenGrades))
	for i, w := range r.WrittenGrades {
		w.Score = cloneScore(w.Score)
		w.RawSource = w.RawSource.Clone()
		cp.WrittenGrades[i] = w
	}
	cp.ProjectGrades = make([]ProjectEntry, len(r.ProjectGrades))
	for i, p := range r.ProjectGrades {
		p.TeamScore = cloneScore(p.TeamScore)
		p.ReportScore = cloneScore(p.ReportScore)
		p.ReportBonus = cloneScore(p.ReportBonus)
		p.TeamInfo = p.TeamInfo.Clone()
		p.ReportInfo = p.ReportInfo.Clone()
		cp.ProjectGrades[i] = p
	}
	cp.Rejected.Written = append([]string(nil), r.Rejected.Written...)
	cp.Rejected.Project = append([]string(nil), r.Rejected.Project...)
	return &cp
}

func cloneScore(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Score(*v)
}
