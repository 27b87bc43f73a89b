package ingest

import (
	"fmt"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
	"github.com/dsl-grades/grade-hub/pkg/timeutil"
)

// Enrollee is one row of the enrollment list.
type Enrollee struct {
	ID      string
	Name    string
	Surname string
	Line    int
}

// ReadEnrollment extracts the enrolled students. Rows with an unusable id
// are reported and skipped.
func ReadEnrollment(t *Table, cols EnrollmentColumns) ([]Enrollee, []RowError, error) {
	h, err := t.Require(cols.ID)
	if err != nil {
		return nil, nil, err
	}
	name, _ := t.Column(cols.Name)
	surname, _ := t.Column(cols.Surname)

	var (
		out  []Enrollee
		errs []RowError
	)
	for i, row := range t.Rows {
		id, err := shared.NewExternalID(row[h[cols.ID]])
		if err != nil {
			errs = append(errs, RowError{Line: t.Lines[i], Err: err})
			continue
		}
		out = append(out, Enrollee{
			ID:      id.String(),
			Name:    row[name],
			Surname: row[surname],
			Line:    t.Lines[i],
		})
	}
	return out, errs, nil
}

// ReadRoster returns the distinct registered student ids in file order.
func ReadRoster(t *Table, cols RosterColumns) ([]string, []RowError, error) {
	h, err := t.Require(cols.ID)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]struct{}, len(t.Rows))
	var (
		out  []string
		errs []RowError
	)
	for i, row := range t.Rows {
		id, err := shared.NewExternalID(row[h[cols.ID]])
		if err != nil {
			errs = append(errs, RowError{Line: t.Lines[i], Err: err})
			continue
		}
		if _, dup := seen[id.String()]; dup {
			continue
		}
		seen[id.String()] = struct{}{}
		out = append(out, id.String())
	}
	return out, errs, nil
}

// WrittenSheet is a parsed exam export.
type WrittenSheet struct {
	// SessionColumn is the resolved header carrying the exam start time.
	SessionColumn string
	Rows          []grade.Payload
	// ByStudent holds the sitting of every student present at the exam.
	ByStudent map[string]*grade.WrittenRow
}

// Session tags the sheet with its exam date.
func (s *WrittenSheet) Session() (string, error) {
	return grade.Tag(grade.StreamWritten, s.Rows, s.SessionColumn, timeutil.ExamDate)
}

// ReadWritten parses an exam export. A student appearing twice makes the
// whole batch malformed since either row could be the right one.
func ReadWritten(t *Table, cols WrittenColumns) (*WrittenSheet, []RowError, error) {
	idCol, useID := "", false
	if cols.ID != "" {
		idCol, useID = t.Column(cols.ID)
	}
	wanted := []string{cols.Started, cols.Score}
	if !useID {
		wanted = append(wanted, cols.Username)
	}
	h, err := t.Require(wanted...)
	if err != nil {
		return nil, nil, err
	}

	sheet := &WrittenSheet{
		SessionColumn: h[cols.Started],
		Rows:          t.Rows,
		ByStudent:     make(map[string]*grade.WrittenRow, len(t.Rows)),
	}
	lines := make(map[string]int, len(t.Rows))
	var errs []RowError

	for i, row := range t.Rows {
		var id string
		if useID {
			ext, err := shared.NewExternalID(row[idCol])
			if err != nil {
				errs = append(errs, RowError{Line: t.Lines[i], Err: err})
				continue
			}
			id = ext.String()
		} else {
			id, err = ParseUsername(row[h[cols.Username]])
			if err != nil {
				errs = append(errs, RowError{Line: t.Lines[i], Err: err})
				continue
			}
		}

		score, err := ParseDecimal(row[h[cols.Score]])
		if err != nil {
			errs = append(errs, RowError{Line: t.Lines[i], StudentID: id, Err: err})
			continue
		}
		if prev, dup := lines[id]; dup {
			return nil, nil, shared.Malformed("ReadWritten",
				"%s: student %s appears on lines %d and %d", t.Name, id, prev, t.Lines[i])
		}
		lines[id] = t.Lines[i]
		sheet.ByStudent[id] = &grade.WrittenRow{Score: score, Raw: row.Clone()}
	}
	return sheet, errs, nil
}

// TeamSheet is a parsed team declaration form.
type TeamSheet struct {
	SessionColumn string
	Normalize     grade.Normalizer
	Rows          []grade.Payload
	Teams         []grade.TeamRow
}

// Session tags the sheet with its project session key.
func (s *TeamSheet) Session() (string, error) {
	return grade.Tag(grade.StreamProject, s.Rows, s.SessionColumn, s.Normalize)
}

// ReadTeams parses the team form. A row whose member ids cannot be read is
// reported and left out; its members then compete as singletons.
func ReadTeams(t *Table, cols TeamColumns) (*TeamSheet, []RowError, error) {
	h, err := t.Require(cols.Session, cols.Member1, cols.Member2)
	if err != nil {
		return nil, nil, err
	}

	sheet := &TeamSheet{
		SessionColumn: h[cols.Session],
		Normalize:     cols.Normalizer(),
		Rows:          t.Rows,
	}
	var errs []RowError
	for i, row := range t.Rows {
		var members [2]string
		bad := false
		for slot, col := range []string{h[cols.Member1], h[cols.Member2]} {
			if row[col] == "" {
				continue
			}
			id, err := shared.NewExternalID(row[col])
			if err != nil {
				errs = append(errs, RowError{Line: t.Lines[i], Err: fmt.Errorf("member %d: %w", slot+1, err)})
				bad = true
				break
			}
			members[slot] = id.String()
		}
		if bad {
			continue
		}
		sheet.Teams = append(sheet.Teams, grade.TeamRow{Members: members, Raw: row.Clone()})
	}
	return sheet, errs, nil
}

// ReadLeaderboard parses leaderboard submissions in file order.
func ReadLeaderboard(t *Table, cols LeaderboardColumns) ([]grade.Submission, []RowError, error) {
	h, err := t.Require(cols.ID, cols.Score)
	if err != nil {
		return nil, nil, err
	}

	var (
		out  []grade.Submission
		errs []RowError
	)
	for i, row := range t.Rows {
		id, err := shared.NewExternalID(row[h[cols.ID]])
		if err != nil {
			errs = append(errs, RowError{Line: t.Lines[i], Err: err})
			continue
		}
		score, err := ParseDecimal(row[h[cols.Score]])
		if err == nil && score == nil {
			err = fmt.Errorf("missing score")
		}
		if err != nil {
			errs = append(errs, RowError{Line: t.Lines[i], StudentID: id.String(), Err: err})
			continue
		}
		out = append(out, grade.Submission{StudentID: id.String(), Score: *score, Raw: row.Clone()})
	}
	return out, errs, nil
}

// ReportLine is one graded report.
type ReportLine struct {
	StudentID string
	Line      int
	Row       grade.ReportRow
}

// ReadReports parses the report grading sheet. The bonus column is optional.
func ReadReports(t *Table, cols ReportColumns) ([]ReportLine, []RowError, error) {
	h, err := t.Require(cols.ID, cols.Score)
	if err != nil {
		return nil, nil, err
	}
	bonusCol, hasBonus := "", false
	if cols.Bonus != "" {
		bonusCol, hasBonus = t.Column(cols.Bonus)
	}

	var (
		out  []ReportLine
		errs []RowError
	)
	for i, row := range t.Rows {
		id, err := shared.NewExternalID(row[h[cols.ID]])
		if err != nil {
			errs = append(errs, RowError{Line: t.Lines[i], Err: err})
			continue
		}
		score, err := ParseDecimal(row[h[cols.Score]])
		if err == nil && score == nil {
			err = fmt.Errorf("missing report score")
		}
		if err != nil {
			errs = append(errs, RowError{Line: t.Lines[i], StudentID: id.String(), Err: err})
			continue
		}
		var bonus *float64
		if hasBonus {
			bonus, err = ParseDecimal(row[bonusCol])
			if err != nil {
				errs = append(errs, RowError{Line: t.Lines[i], StudentID: id.String(), Err: err})
				continue
			}
		}
		out = append(out, ReportLine{
			StudentID: id.String(),
			Line:      t.Lines[i],
			Row:       grade.ReportRow{Score: *score, Bonus: bonus, Raw: row.Clone()},
		})
	}
	return out, errs, nil
}
