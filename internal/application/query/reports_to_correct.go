package query

import (
	"context"
	"fmt"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORTS TO CORRECT QUERY
// Lists the students whose project report still has to be graded.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultReportThreshold is the best written score that makes a report worth grading.
const DefaultReportThreshold = 15.0

// ReportsToCorrectQuery contains the parameters of the listing.
type ReportsToCorrectQuery struct {
	// ProjectSession overrides the stored project marker.
	ProjectSession string
}

// ReportToCorrectDTO is one student waiting for a report grade.
type ReportToCorrectDTO struct {
	StudentDTO
	BestWritten float64  `json:"best_written"`
	TeamScore   *float64 `json:"team_score,omitempty"`
}

// ReportsToCorrectHandler handles the ReportsToCorrectQuery.
type ReportsToCorrectHandler struct {
	deps      Deps
	threshold float64
}

// NewReportsToCorrectHandler creates a handler; a negative threshold means DefaultReportThreshold.
func NewReportsToCorrectHandler(deps Deps, threshold float64) *ReportsToCorrectHandler {
	if threshold < 0 {
		threshold = DefaultReportThreshold
	}
	return &ReportsToCorrectHandler{deps: deps.withDefaults(), threshold: threshold}
}

// Handle returns, sorted by student id, everyone whose best written score
// reaches the threshold, who has an entry for the current project session,
// and whose entry has no report score yet.
func (h *ReportsToCorrectHandler) Handle(ctx context.Context, q ReportsToCorrectQuery) ([]ReportToCorrectDTO, error) {
	session, err := h.deps.session(ctx, "", q.ProjectSession)
	if err != nil {
		return nil, fmt.Errorf("reports_to_correct: %w", err)
	}
	if session.Project == "" {
		return nil, fmt.Errorf("reports_to_correct: %w", shared.ErrSessionNotSet)
	}
	students, err := h.deps.gradebook(ctx, "reports_to_correct")
	if err != nil {
		return nil, err
	}

	out := make([]ReportToCorrectDTO, 0)
	for _, s := range students {
		best, ok := s.record.BestWrittenScore()
		if !ok || best < h.threshold {
			continue
		}
		entry, ok := entryFor(s.record.ProjectGrades, session.Project)
		if !ok || entry.ReportScore != nil || entry.Flag == grade.FlagRejected {
			continue
		}
		out = append(out, ReportToCorrectDTO{
			StudentDTO:  s.StudentDTO,
			BestWritten: best,
			TeamScore:   entry.TeamScore,
		})
	}
	return out, nil
}

func entryFor(history []grade.ProjectEntry, session string) (grade.ProjectEntry, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].SessionKey == session {
			return history[i], true
		}
	}
	return grade.ProjectEntry{}, false
}
