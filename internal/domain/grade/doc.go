// Package grade holds the reconciliation core of grade-hub.
//
// A Record is one student's document: two append-only histories, one of
// written exam sittings and one of project evaluation rounds, each entry
// keyed by a session key. Three independent batch sources are folded into
// these histories:
//
//   - written exam results (AmendWritten)
//   - leaderboard submissions grouped by team (BuildTeams, AmendTeam)
//   - manually graded reports (AmendReport)
//
// # Append-or-amend
//
// Every Amend* function looks up the entry for the batch's session by key.
// A match is replaced in place; no match appends. Re-running a batch for
// the same session therefore leaves the history unchanged, and a crash in
// the middle of a batch is repaired by running it again. Two entries with
// the same key are an invariant violation reported as shared.ErrAmbiguousMerge.
//
// # Sessions
//
// The current appeal is described by a Session value carrying the written
// and project markers. It is derived from a batch by Tag, persisted through
// MarkerRepository, and passed explicitly to the merge and verdict calls:
//
//	key, err := grade.Tag(grade.StreamWritten, rows, "date", timeutil.ExamDate)
//	session = session.With(grade.StreamWritten, key)
//	verdict := grade.Decide(record, session, grade.DefaultPassMark)
//
// # Project completion
//
// A project entry is OK once both its team score and its report score are
// present. AmendTeam and AmendReport commute: whichever runs second flips
// the entry to OK. A team that never reached the leaderboard carries a nil
// best score and leaves member histories untouched.
//
// The package has no dependencies beyond the standard library and
// internal/domain/shared.
package grade
