package ingest

import (
	"fmt"
	"strings"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/pkg/timeutil"
)

// Schema names the columns read from every batch source. Header matching
// follows Table.Column, so a prefix such as "COGNOME" is enough.
type Schema struct {
	Enrollment  EnrollmentColumns  `yaml:"enrollment"`
	Written     WrittenColumns     `yaml:"written"`
	Roster      RosterColumns      `yaml:"roster"`
	Teams       TeamColumns        `yaml:"teams"`
	Leaderboard LeaderboardColumns `yaml:"leaderboard"`
	Report      ReportColumns      `yaml:"report"`
}

// EnrollmentColumns describes the enrollment list.
type EnrollmentColumns struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Surname string `yaml:"surname"`
}

// WrittenColumns describes the exam platform export. When ID is set and
// present in the file it is used as is; otherwise the id is taken from
// Username.
type WrittenColumns struct {
	Username string `yaml:"username"`
	ID       string `yaml:"id"`
	Started  string `yaml:"started"`
	Score    string `yaml:"score"`
}

// RosterColumns describes the list of students registered to a sitting.
type RosterColumns struct {
	ID string `yaml:"id"`
}

// Session formats for the team form.
const (
	SessionVerbatim = "verbatim"
	SessionFormDate = "form-date"
)

// TeamColumns describes the team declaration form. The session key is read
// from Session, normalized according to SessionFormat.
type TeamColumns struct {
	Session       string `yaml:"session"`
	SessionFormat string `yaml:"session_format"`
	Member1       string `yaml:"member_1"`
	Member2       string `yaml:"member_2"`
}

// LeaderboardColumns describes the leaderboard export.
type LeaderboardColumns struct {
	ID    string `yaml:"id"`
	Score string `yaml:"score"`
}

// ReportColumns describes the report grading sheet. Bonus is optional.
type ReportColumns struct {
	ID    string `yaml:"id"`
	Score string `yaml:"score"`
	Bonus string `yaml:"bonus"`
}

// DefaultSchema returns the column names used by the course exports.
func DefaultSchema() Schema {
	return Schema{
		Enrollment: EnrollmentColumns{ID: "MATRICOLA", Name: "NOME", Surname: "COGNOME"},
		Written: WrittenColumns{
			Username: "Username",
			Started:  "Iniziato",
			Score:    "Valutazione/20,00",
		},
		Roster:      RosterColumns{ID: "MATRICOLA"},
		Teams:       TeamColumns{Session: "project_id", SessionFormat: SessionVerbatim, Member1: "Student ID # 1", Member2: "Student ID # 2"},
		Leaderboard: LeaderboardColumns{ID: "matricola", Score: "rounded_points"},
		Report:      ReportColumns{ID: "Matricola", Score: "Final score", Bonus: "report_extra_grade"},
	}
}

// Validate reports the first required column left empty.
func (s Schema) Validate() error {
	required := []struct{ name, value string }{
		{"enrollment.id", s.Enrollment.ID},
		{"written.started", s.Written.Started},
		{"written.score", s.Written.Score},
		{"roster.id", s.Roster.ID},
		{"teams.session", s.Teams.Session},
		{"teams.member_1", s.Teams.Member1},
		{"teams.member_2", s.Teams.Member2},
		{"leaderboard.id", s.Leaderboard.ID},
		{"leaderboard.score", s.Leaderboard.Score},
		{"report.id", s.Report.ID},
		{"report.score", s.Report.Score},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("schema: column %s is empty", r.name)
		}
	}
	if s.Written.Username == "" && s.Written.ID == "" {
		return fmt.Errorf("schema: written needs username or id column")
	}
	switch s.Teams.SessionFormat {
	case "", SessionVerbatim, SessionFormDate:
	default:
		return fmt.Errorf("schema: unknown teams.session_format %q", s.Teams.SessionFormat)
	}
	return nil
}

// Normalizer returns the session key normalizer for the team form.
func (c TeamColumns) Normalizer() grade.Normalizer {
	if c.SessionFormat == SessionFormDate {
		return timeutil.FormDate
	}
	return nil
}
