package query

import (
	"context"
	"fmt"
	"slices"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
	"github.com/dsl-grades/grade-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FINAL GRADES QUERY
// Computes the appeal verdict of every enrolled student.
// ══════════════════════════════════════════════════════════════════════════════

// FinalGradesQuery contains the parameters of a verdict listing.
type FinalGradesQuery struct {
	// StudentIDs restricts the listing; empty means everyone.
	StudentIDs []string

	// WrittenSession and ProjectSession override the stored markers.
	WrittenSession string
	ProjectSession string
}

// Validate normalizes the filter ids.
func (q *FinalGradesQuery) Validate() error {
	for i, raw := range q.StudentIDs {
		id, err := shared.NewExternalID(raw)
		if err != nil {
			return err
		}
		q.StudentIDs[i] = id.String()
	}
	return nil
}

// FinalGradesDTO is the verdict listing.
type FinalGradesDTO struct {
	Session grade.Session `json:"session"`

	// Verdicts maps external ids to their verdict.
	Verdicts map[string]grade.Verdict `json:"verdicts"`

	// Counts tallies verdicts by outcome.
	Counts map[grade.Outcome]int `json:"counts"`
}

// FinalGradesHandler handles the FinalGradesQuery.
type FinalGradesHandler struct {
	deps     Deps
	passMark float64
}

// NewFinalGradesHandler creates a handler; a non-positive passMark means grade.DefaultPassMark.
func NewFinalGradesHandler(deps Deps, passMark float64) *FinalGradesHandler {
	if passMark <= 0 {
		passMark = grade.DefaultPassMark
	}
	return &FinalGradesHandler{deps: deps.withDefaults(), passMark: passMark}
}

// Handle executes the query.
func (h *FinalGradesHandler) Handle(ctx context.Context, q FinalGradesQuery) (*FinalGradesDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("final_grades: %w", err)
	}
	session, err := h.deps.session(ctx, q.WrittenSession, q.ProjectSession)
	if err != nil {
		return nil, fmt.Errorf("final_grades: %w", err)
	}
	students, err := h.deps.gradebook(ctx, "final_grades")
	if err != nil {
		return nil, err
	}

	dto := &FinalGradesDTO{
		Session:  session,
		Verdicts: make(map[string]grade.Verdict, len(students)),
		Counts:   map[grade.Outcome]int{},
	}
	for _, s := range students {
		if len(q.StudentIDs) > 0 && !slices.Contains(q.StudentIDs, s.StudentID) {
			continue
		}
		v := grade.Decide(s.record, session, h.passMark)
		dto.Verdicts[s.StudentID] = v
		dto.Counts[v.Outcome]++
	}

	for _, id := range q.StudentIDs {
		if _, ok := dto.Verdicts[id]; !ok {
			h.deps.Logger.Warn("requested student not enrolled",
				logger.Operation("final_grades"), logger.StudentID(id))
		}
	}
	return dto, nil
}
