package grade

import (
	"strings"

	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

// TeamRow is one declared team: up to two external student ids.
// Empty slots are empty strings.
type TeamRow struct {
	Members [2]string
	Raw     Payload
}

// Submission is one leaderboard attempt by one student.
type Submission struct {
	StudentID string
	Score     float64
	Raw       Payload
}

// Team is the per-session aggregate built from teams and submissions.
// A nil Best is the "no submission" sentinel, distinct from a score of 0.
type Team struct {
	Session     string
	Members     [2]string
	Best        *float64
	Info        Payload
	Synthesized bool
}

// Submitted reports whether any member reached the leaderboard.
func (t Team) Submitted() bool {
	return t.Best != nil
}

// MemberIDs returns the non-empty member slots.
func (t Team) MemberIDs() []string {
	ids := make([]string, 0, 2)
	for _, m := range t.Members {
		if m != "" {
			ids = append(ids, m)
		}
	}
	return ids
}

// submissionPrefix namespaces leaderboard cells inside TeamInfo.
const submissionPrefix = "submission."

// BuildTeams aggregates the best leaderboard score per team.
//
// Declared teams keep their input order; submitters outside every team get
// a synthesized singleton team appended in first-submission order. A later
// submission replaces the stored best only when strictly greater, so ties
// keep the first-seen payload.
func BuildTeams(session string, rows []TeamRow, subs []Submission) ([]Team, error) {
	if session == "" {
		return nil, shared.Malformed("BuildTeams", "project session key is empty")
	}

	teams := make([]Team, 0, len(rows))
	index := make(map[string]int, 2*len(rows))

	for i, row := range rows {
		members := normalizeMembers(row.Members)
		if members[0] == "" {
			return nil, shared.Malformed("BuildTeams", "team row %d has no members", i+1)
		}
		for _, m := range members {
			if m == "" {
				continue
			}
			if prev, dup := index[m]; dup {
				return nil, shared.Malformed("BuildTeams",
					"student %s declared in team rows %d and %d", m, prev+1, i+1)
			}
			index[m] = len(teams)
		}
		teams = append(teams, Team{
			Session: session,
			Members: members,
			Info:    row.Raw.Clone(),
		})
	}

	for _, sub := range subs {
		id := strings.TrimSpace(sub.StudentID)
		if id == "" {
			return nil, shared.Malformed("BuildTeams", "leaderboard row without student id")
		}
		pos, ok := index[id]
		if !ok {
			pos = len(teams)
			index[id] = pos
			teams = append(teams, Team{
				Session:     session,
				Members:     [2]string{id, ""},
				Synthesized: true,
			})
		}
		t := &teams[pos]
		if t.Best == nil || sub.Score > *t.Best {
			t.Best = Score(sub.Score)
			t.Info = withSubmission(t.Info, sub.Raw)
		}
	}
	return teams, nil
}

func normalizeMembers(in [2]string) [2]string {
	a, b := strings.TrimSpace(in[0]), strings.TrimSpace(in[1])
	if a == "" {
		a, b = b, ""
	}
	if a == b {
		b = ""
	}
	return [2]string{a, b}
}

func withSubmission(info, raw Payload) Payload {
	out := make(Payload, len(info)+len(raw))
	for k, v := range info {
		if !strings.HasPrefix(k, submissionPrefix) {
			out[k] = v
		}
	}
	for k, v := range raw {
		out[submissionPrefix+k] = v
	}
	return out
}

// AmendTeam folds a team's leaderboard outcome into one member's project
// history. Teams without a submission leave the history untouched, so a
// missing submission can never surface as a team score of 0.
func AmendTeam(history []ProjectEntry, team Team) ([]ProjectEntry, bool, error) {
	idx, err := projectIndex(history, team.Session)
	if err != nil {
		return history, false, err
	}
	if !team.Submitted() {
		return history, false, nil
	}

	out := make([]ProjectEntry, len(history), len(history)+1)
	copy(out, history)

	if idx < 0 {
		return append(out, ProjectEntry{
			SessionKey: team.Session,
			TeamScore:  Score(*team.Best),
			Flag:       FlagNoReport,
			TeamInfo:   team.Info.Clone(),
		}), true, nil
	}

	entry := out[idx]
	entry.TeamScore = Score(*team.Best)
	entry.TeamInfo = team.Info.Clone()
	entry.Flag = settle(entry)
	if entry.equal(history[idx]) {
		return history, false, nil
	}
	out[idx] = entry
	return out, true, nil
}

// settle derives the completion flag from the halves present.
// REJECTED is sticky.
func settle(e ProjectEntry) CompletionFlag {
	switch {
	case e.Flag == FlagRejected:
		return FlagRejected
	case e.TeamScore != nil && e.ReportScore != nil:
		return FlagOK
	case e.ReportScore != nil:
		return FlagNoLeaderboard
	default:
		return FlagNoReport
	}
}
