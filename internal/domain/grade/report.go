package grade

import "github.com/dsl-grades/grade-hub/internal/domain/shared"

// ReportRow is one manually graded report.
type ReportRow struct {
	Score float64
	Bonus *float64
	Raw   Payload
}

// AmendReport folds a report score into the project entry of session,
// creating a NO_LEADERBOARD entry when the leaderboard has not arrived yet.
// Whichever of AmendTeam and AmendReport runs second completes the entry.
func AmendReport(history []ProjectEntry, session string, row ReportRow) ([]ProjectEntry, bool, error) {
	if session == "" {
		return history, false, shared.ErrSessionNotSet
	}
	idx, err := projectIndex(history, session)
	if err != nil {
		return history, false, err
	}

	out := make([]ProjectEntry, len(history), len(history)+1)
	copy(out, history)

	var entry ProjectEntry
	if idx >= 0 {
		entry = out[idx]
	} else {
		entry = ProjectEntry{SessionKey: session}
	}
	entry.ReportScore = Score(row.Score)
	entry.ReportBonus = nil
	if row.Bonus != nil {
		entry.ReportBonus = Score(*row.Bonus)
	}
	entry.ReportInfo = row.Raw.Clone()
	entry.Flag = settle(entry)

	if idx < 0 {
		return append(out, entry), true, nil
	}
	if entry.equal(history[idx]) {
		return history, false, nil
	}
	out[idx] = entry
	return out, true, nil
}
