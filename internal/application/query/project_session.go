package query

import (
	"context"
	"fmt"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROJECT SESSION QUERY
// Lists the completed project evaluations of one session.
// ══════════════════════════════════════════════════════════════════════════════

// ProjectSessionQuery contains the parameters of the listing.
type ProjectSessionQuery struct {
	// Session overrides the stored project marker.
	Session string
}

// ProjectScoreDTO is one completed project evaluation.
type ProjectScoreDTO struct {
	StudentDTO
	Session     string   `json:"session"`
	TeamScore   *float64 `json:"team_score"`
	ReportScore *float64 `json:"report_score"`
	ReportBonus *float64 `json:"report_bonus,omitempty"`
	Total       float64  `json:"total"`
}

// ProjectSessionDTO is the listing for one session.
type ProjectSessionDTO struct {
	Session  string            `json:"session"`
	Students []ProjectScoreDTO `json:"students"`

	// Incomplete counts entries of the session still missing a half.
	Incomplete int `json:"incomplete"`
}

// ProjectSessionHandler handles the ProjectSessionQuery.
type ProjectSessionHandler struct {
	deps Deps
}

// NewProjectSessionHandler creates a new ProjectSessionHandler.
func NewProjectSessionHandler(deps Deps) *ProjectSessionHandler {
	return &ProjectSessionHandler{deps: deps.withDefaults()}
}

// Handle executes the query.
func (h *ProjectSessionHandler) Handle(ctx context.Context, q ProjectSessionQuery) (*ProjectSessionDTO, error) {
	session, err := h.deps.session(ctx, "", q.Session)
	if err != nil {
		return nil, fmt.Errorf("project_session: %w", err)
	}
	if session.Project == "" {
		return nil, fmt.Errorf("project_session: %w", shared.ErrSessionNotSet)
	}
	students, err := h.deps.gradebook(ctx, "project_session")
	if err != nil {
		return nil, err
	}

	dto := &ProjectSessionDTO{Session: session.Project, Students: make([]ProjectScoreDTO, 0)}
	for _, s := range students {
		entry, ok := entryFor(s.record.ProjectGrades, session.Project)
		if !ok {
			continue
		}
		if entry.Flag != grade.FlagOK {
			if entry.Flag != grade.FlagRejected {
				dto.Incomplete++
			}
			continue
		}
		dto.Students = append(dto.Students, ProjectScoreDTO{
			StudentDTO:  s.StudentDTO,
			Session:     entry.SessionKey,
			TeamScore:   entry.TeamScore,
			ReportScore: entry.ReportScore,
			ReportBonus: entry.ReportBonus,
			Total:       entry.Total(),
		})
	}
	return dto, nil
}
