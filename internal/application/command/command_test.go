package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsl-grades/grade-hub/internal/application/command"
	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/identity"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
	"github.com/dsl-grades/grade-hub/internal/infrastructure/persistence/memory"
)

type fixture struct {
	records *memory.RecordRepository
	ids     *memory.IdentityRepository
	markers *memory.MarkerRepository
	deps    command.Deps
}

func newFixture(t *testing.T, students ...string) *fixture {
	t.Helper()
	f := &fixture{
		records: memory.NewRecordRepository(),
		ids:     memory.NewIdentityRepository(),
		markers: memory.NewMarkerRepository(),
	}
	f.deps = command.Deps{
		Records:  f.records,
		Markers:  f.markers,
		Resolver: identity.NewResolver(f.ids),
	}
	if len(students) > 0 {
		cmd := command.EnrollStudentsCommand{}
		for i, id := range students {
			cmd.Students = append(cmd.Students, command.Enrollee{Line: i + 2, ID: id, Name: "N" + id, Surname: "S" + id})
		}
		_, err := command.NewEnrollStudentsHandler(f.deps).Handle(context.Background(), cmd)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) record(t *testing.T, externalID string) *grade.Record {
	t.Helper()
	internalID, err := f.deps.Resolver.Resolve(context.Background(), externalID)
	require.NoError(t, err)
	rec, err := f.records.Get(context.Background(), internalID)
	require.NoError(t, err)
	return rec
}

func row(score float64) *grade.WrittenRow {
	return &grade.WrittenRow{Score: grade.Score(score), Raw: grade.Payload{"Valutazione/20,00": grade.FormatScore(score)}}
}

func writtenCmd(session string, roster []string, rows map[string]*grade.WrittenRow) command.IngestWrittenCommand {
	return command.IngestWrittenCommand{Session: session, Roster: roster, Rows: rows}
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollment
// ─────────────────────────────────────────────────────────────────────────────

func TestEnrollStudents_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := command.NewEnrollStudentsHandler(f.deps)
	cmd := command.EnrollStudentsCommand{Students: []command.Enrollee{
		{Line: 2, ID: "313385", Name: "Mario", Surname: "Rossi"},
		{Line: 3, ID: "313386", Name: "Anna", Surname: "Bianchi"},
		{Line: 4, ID: "   "},
	}}

	first, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 2, first.Merged)
	assert.Equal(t, 1, first.Failed)
	require.Len(t, first.Errors, 1)
	assert.Equal(t, 4, first.Errors[0].Line)
	assert.ElementsMatch(t, []string{"313385", "313386"}, first.Created)

	writes := f.records.Writes()
	second, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Merged)
	assert.Equal(t, 2, second.Unchanged)
	assert.Equal(t, writes, f.records.Writes())

	rec := f.record(t, "313385")
	assert.Equal(t, "Mario", rec.Name)
	assert.Empty(t, rec.WrittenGrades)
}

func TestEnrollStudents_DryRunWritesNothing(t *testing.T) {
	f := newFixture(t, "100")
	res, err := command.NewEnrollStudentsHandler(f.deps).Handle(context.Background(), command.EnrollStudentsCommand{
		Students: []command.Enrollee{{ID: "100"}, {ID: "101"}},
		DryRun:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Merged)
	assert.Equal(t, 1, res.Unchanged)

	_, err = f.deps.Resolver.Resolve(context.Background(), "101")
	assert.True(t, shared.IsNotFound(err))
}

func TestEnrollStudents_EmptyListIsMalformed(t *testing.T) {
	f := newFixture(t)
	_, err := command.NewEnrollStudentsHandler(f.deps).Handle(context.Background(), command.EnrollStudentsCommand{})
	assert.True(t, shared.IsMalformedBatch(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Written
// ─────────────────────────────────────────────────────────────────────────────

func TestIngestWritten_DerivesStatusesAndSetsMarker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1", "2", "3", "4")
	h := command.NewIngestWrittenHandler(f.deps, command.DefaultIngestWrittenHandlerConfig())

	res, err := h.Handle(ctx, writtenCmd("08/09/2023",
		[]string{"1", "2", "3", "4", "99"},
		map[string]*grade.WrittenRow{
			"1":  row(20),
			"2":  row(12.5),
			"3":  {Raw: grade.Payload{"Valutazione/20,00": "-"}},
			"77": row(30),
		}))
	require.NoError(t, err)

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 4, res.Merged)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"77"}, res.NotOnRoster)
	assert.Equal(t, map[grade.WrittenStatus]int{
		grade.WrittenOK: 1, grade.WrittenFailed: 1, grade.WrittenRetired: 1, grade.WrittenAbsent: 1,
	}, res.Statuses)

	session, err := f.markers.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "08/09/2023", session.Written)

	absent := f.record(t, "4").WrittenGrades
	require.Len(t, absent, 1)
	assert.Equal(t, grade.WrittenAbsent, absent[0].Status)
	assert.Nil(t, absent[0].Score)
	assert.Nil(t, absent[0].RawSource)

	ok := f.record(t, "1").WrittenGrades
	require.Len(t, ok, 1)
	assert.Equal(t, 20.0, *ok[0].Score)
}

func TestIngestWritten_RerunIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1", "2")
	h := command.NewIngestWrittenHandler(f.deps, command.DefaultIngestWrittenHandlerConfig())
	cmd := writtenCmd("08/09/2023", []string{"1", "2"}, map[string]*grade.WrittenRow{"1": row(25)})

	_, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	writes := f.records.Writes()
	before := f.record(t, "1")

	res, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Merged)
	assert.Equal(t, 2, res.Unchanged)
	assert.Equal(t, writes, f.records.Writes())
	assert.Equal(t, before, f.record(t, "1"))
}

func TestIngestWritten_CorrectedBatchAmendsInPlace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1")
	h := command.NewIngestWrittenHandler(f.deps, command.DefaultIngestWrittenHandlerConfig())

	_, err := h.Handle(ctx, writtenCmd("08/09/2023", []string{"1"}, map[string]*grade.WrittenRow{"1": row(17)}))
	require.NoError(t, err)
	_, err = h.Handle(ctx, writtenCmd("08/09/2023", []string{"1"}, map[string]*grade.WrittenRow{"1": row(19)}))
	require.NoError(t, err)
	_, err = h.Handle(ctx, writtenCmd("10/02/2024", []string{"1"}, map[string]*grade.WrittenRow{"1": row(28)}))
	require.NoError(t, err)

	history := f.record(t, "1").WrittenGrades
	require.Len(t, history, 2)
	assert.Equal(t, "08/09/2023", history[0].SessionKey)
	assert.Equal(t, 19.0, *history[0].Score)
	assert.Equal(t, grade.WrittenOK, history[0].Status)
	assert.Equal(t, "10/02/2024", history[1].SessionKey)
}

func TestIngestWritten_MalformedBatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1")
	writes := f.records.Writes()

	_, err := command.NewIngestWrittenHandler(f.deps, command.DefaultIngestWrittenHandlerConfig()).
		Handle(ctx, writtenCmd("", []string{"1"}, nil))
	assert.True(t, shared.IsMalformedBatch(err))
	assert.Equal(t, writes, f.records.Writes())

	session, err := f.markers.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Empty(t, session.Written)
}

func TestIngestWritten_AmbiguousHistoryAbortsRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1", "2")
	dup := []grade.WrittenEntry{
		{SessionKey: "08/09/2023", Status: grade.WrittenOK, Score: grade.Score(20)},
		{SessionKey: "08/09/2023", Status: grade.WrittenFailed, Score: grade.Score(10)},
	}
	internalID, err := f.deps.Resolver.Resolve(ctx, "1")
	require.NoError(t, err)
	require.NoError(t, f.records.ReplaceField(ctx, internalID, grade.FieldWrittenGrades, dup))

	_, err = command.NewIngestWrittenHandler(f.deps, command.DefaultIngestWrittenHandlerConfig()).
		Handle(ctx, writtenCmd("08/09/2023", []string{"1", "2"}, map[string]*grade.WrittenRow{"2": row(20)}))
	require.Error(t, err)
	assert.True(t, shared.IsAmbiguousMerge(err))
	assert.Empty(t, f.record(t, "2").WrittenGrades)
}

func TestIngestWritten_UnreadableRowLeavesStudentUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "313385", "313386")
	h := command.NewIngestWrittenHandler(f.deps, command.DefaultIngestWrittenHandlerConfig())
	roster := []string{"313385", "313386"}

	_, err := h.Handle(ctx, writtenCmd("08/09/2023", roster, map[string]*grade.WrittenRow{"313385": row(20), "313386": row(19)}))
	require.NoError(t, err)
	writes := f.records.Writes()

	cmd := writtenCmd("08/09/2023", roster, map[string]*grade.WrittenRow{"313386": row(19)})
	cmd.Unreadable = []command.RowError{
		{Line: 2, StudentID: "313385", Err: errors.New(`not a number: "20,0O"`)},
		{Line: 4, StudentID: "999", Err: errors.New(`not a number: "x"`)},
	}
	res, err := h.Handle(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Unchanged)
	assert.Zero(t, res.Statuses[grade.WrittenAbsent])
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "313385", res.Errors[0].StudentID)
	assert.Equal(t, writes, f.records.Writes())

	history := f.record(t, "313385").WrittenGrades
	require.Len(t, history, 1)
	assert.Equal(t, grade.WrittenOK, history[0].Status)
	assert.Equal(t, 20.0, *history[0].Score)
}

func TestIngestWritten_UnattributableRowIsMalformed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1")
	writes := f.records.Writes()

	cmd := writtenCmd("08/09/2023", []string{"1"}, nil)
	cmd.Unreadable = []command.RowError{{Line: 2, Err: errors.New("bad username")}}
	_, err := command.NewIngestWrittenHandler(f.deps, command.DefaultIngestWrittenHandlerConfig()).Handle(ctx, cmd)
	assert.True(t, shared.IsMalformedBatch(err))
	assert.Equal(t, writes, f.records.Writes())
	assert.Empty(t, f.record(t, "1").WrittenGrades)
}

// failingRecords fails every write to one record.
type failingRecords struct {
	*memory.RecordRepository
	failOn string
}

func (r *failingRecords) ReplaceField(ctx context.Context, internalID, field string, value any) error {
	if internalID == r.failOn {
		return errors.New("disk full")
	}
	return r.RecordRepository.ReplaceField(ctx, internalID, field, value)
}

func TestIngestWritten_CountsOnlyStoredMerges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1", "2")
	failOn, err := f.deps.Resolver.Resolve(ctx, "2")
	require.NoError(t, err)
	deps := f.deps
	deps.Records = &failingRecords{RecordRepository: f.records, failOn: failOn}

	res, err := command.NewIngestWrittenHandler(deps, command.DefaultIngestWrittenHandlerConfig()).
		Handle(ctx, writtenCmd("08/09/2023", []string{"1", "2"}, map[string]*grade.WrittenRow{"1": row(20), "2": row(20)}))
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, res.Merged)
	assert.Equal(t, 1, res.Statuses[grade.WrittenOK])
}

func TestIngestWritten_DryRunLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1")
	writes := f.records.Writes()

	cmd := writtenCmd("08/09/2023", []string{"1"}, map[string]*grade.WrittenRow{"1": row(20)})
	cmd.DryRun = true
	res, err := command.NewIngestWrittenHandler(f.deps, command.DefaultIngestWrittenHandlerConfig()).Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Merged)
	assert.Equal(t, writes, f.records.Writes())

	session, err := f.markers.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Empty(t, session.Written)
}

// ─────────────────────────────────────────────────────────────────────────────
// Leaderboard and reports
// ─────────────────────────────────────────────────────────────────────────────

func leaderboardCmd(session string) command.IngestLeaderboardCommand {
	return command.IngestLeaderboardCommand{
		Session: session,
		Teams: []grade.TeamRow{
			{Members: [2]string{"1", "2"}, Raw: grade.Payload{"project_id": session}},
			{Members: [2]string{"3", ""}, Raw: grade.Payload{"project_id": session}},
		},
		Submissions: []grade.Submission{
			{StudentID: "2", Score: 8, Raw: grade.Payload{"rounded_points": "8"}},
			{StudentID: "1", Score: 9, Raw: grade.Payload{"rounded_points": "9"}},
			{StudentID: "4", Score: 5, Raw: grade.Payload{"rounded_points": "5"}},
		},
	}
}

func reportCmd(session string) command.IngestReportCommand {
	return command.IngestReportCommand{
		Session: session,
		Reports: []command.ReportLine{
			{Line: 2, StudentID: "1", Row: grade.ReportRow{Score: 4, Bonus: grade.Score(1), Raw: grade.Payload{"Final score": "4"}}},
			{Line: 3, StudentID: "2", Row: grade.ReportRow{Score: 3, Raw: grade.Payload{"Final score": "3"}}},
		},
	}
}

func TestIngestLeaderboard_BuildsTeamsAndMergesMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1", "2", "3", "4")

	res, err := command.NewIngestLeaderboardHandler(f.deps).Handle(ctx, leaderboardCmd("P1"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Teams)
	assert.Equal(t, 1, res.Synthesized)
	assert.Equal(t, 1, res.NoSubmission)
	assert.Equal(t, 3, res.Merged)
	assert.Equal(t, 1, res.Unchanged)

	session, err := f.markers.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P1", session.Project)

	for _, id := range []string{"1", "2"} {
		history := f.record(t, id).ProjectGrades
		require.Len(t, history, 1, id)
		assert.Equal(t, 9.0, *history[0].TeamScore)
		assert.Equal(t, grade.FlagNoReport, history[0].Flag)
	}
	assert.Empty(t, f.record(t, "3").ProjectGrades, "a team without submission gets no entry")
	assert.Equal(t, 5.0, *f.record(t, "4").ProjectGrades[0].TeamScore)
}

func TestIngestLeaderboard_StudentInTwoTeamsIsMalformed(t *testing.T) {
	f := newFixture(t, "1", "2")
	cmd := command.IngestLeaderboardCommand{
		Session: "P1",
		Teams: []grade.TeamRow{
			{Members: [2]string{"1", "2"}},
			{Members: [2]string{"2", ""}},
		},
	}
	writes := f.records.Writes()

	_, err := command.NewIngestLeaderboardHandler(f.deps).Handle(context.Background(), cmd)
	assert.True(t, shared.IsMalformedBatch(err))
	assert.Equal(t, writes, f.records.Writes())
}

func TestIngestReport_RequiresProjectMarker(t *testing.T) {
	f := newFixture(t, "1")
	cmd := reportCmd("")

	_, err := command.NewIngestReportHandler(f.deps).Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSessionNotSet)
}

func TestIngestReport_DuplicateStudentIsMalformed(t *testing.T) {
	f := newFixture(t, "1")
	cmd := reportCmd("P1")
	cmd.Reports[1].StudentID = "1"

	_, err := command.NewIngestReportHandler(f.deps).Handle(context.Background(), cmd)
	assert.True(t, shared.IsMalformedBatch(err))
}

func TestLeaderboardAndReport_Commute(t *testing.T) {
	ctx := context.Background()

	teamsFirst := newFixture(t, "1", "2", "3", "4")
	_, err := command.NewIngestLeaderboardHandler(teamsFirst.deps).Handle(ctx, leaderboardCmd("P1"))
	require.NoError(t, err)
	res, err := command.NewIngestReportHandler(teamsFirst.deps).Handle(ctx, reportCmd(""))
	require.NoError(t, err)
	assert.Equal(t, "P1", res.Session)
	assert.Equal(t, 2, res.Completed)

	reportsFirst := newFixture(t, "1", "2", "3", "4")
	_, err = command.NewIngestReportHandler(reportsFirst.deps).Handle(ctx, reportCmd("P1"))
	require.NoError(t, err)
	assert.Equal(t, grade.FlagNoLeaderboard, reportsFirst.record(t, "1").ProjectGrades[0].Flag)
	_, err = command.NewIngestLeaderboardHandler(reportsFirst.deps).Handle(ctx, leaderboardCmd("P1"))
	require.NoError(t, err)

	for _, id := range []string{"1", "2"} {
		a := teamsFirst.record(t, id).ProjectGrades
		b := reportsFirst.record(t, id).ProjectGrades
		assert.Equal(t, a, b, id)
		require.Len(t, a, 1)
		assert.Equal(t, grade.FlagOK, a[0].Flag)
	}
	assert.Equal(t, 14.0, teamsFirst.record(t, "1").ProjectGrades[0].Total())
}

// ─────────────────────────────────────────────────────────────────────────────
// Student management
// ─────────────────────────────────────────────────────────────────────────────

func TestRenameStudent_PreservesGrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "123")
	_, err := command.NewIngestWrittenHandler(f.deps, command.DefaultIngestWrittenHandlerConfig()).
		Handle(ctx, writtenCmd("08/09/2023", []string{"123"}, map[string]*grade.WrittenRow{"123": row(22)}))
	require.NoError(t, err)
	before := f.record(t, "123")

	res, err := command.NewRenameStudentHandler(f.deps).Handle(ctx, command.RenameStudentCommand{OldID: "123", NewID: "125"})
	require.NoError(t, err)
	assert.Equal(t, before.InternalID, res.InternalID)
	assert.Equal(t, before, f.record(t, "125"))

	_, err = f.deps.Resolver.Resolve(ctx, "123")
	assert.True(t, shared.IsNotFound(err))
}

func TestRenameStudent_TargetTaken(t *testing.T) {
	f := newFixture(t, "1", "2")
	_, err := command.NewRenameStudentHandler(f.deps).Handle(context.Background(), command.RenameStudentCommand{OldID: "1", NewID: "2"})
	assert.True(t, shared.IsAlreadyExists(err))
}

func TestRenameStudent_DryRunKeepsMapping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "123")
	internalID, err := f.deps.Resolver.Resolve(ctx, "123")
	require.NoError(t, err)

	h := command.NewRenameStudentHandler(f.deps)
	res, err := h.Handle(ctx, command.RenameStudentCommand{OldID: "123", NewID: "125", DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, internalID, res.InternalID)

	got, err := f.deps.Resolver.Resolve(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, internalID, got)
	_, err = f.deps.Resolver.Resolve(ctx, "125")
	assert.True(t, shared.IsNotFound(err))

	f2 := newFixture(t, "1", "2")
	_, err = command.NewRenameStudentHandler(f2.deps).Handle(ctx, command.RenameStudentCommand{OldID: "1", NewID: "2", DryRun: true})
	assert.True(t, shared.IsAlreadyExists(err))
}

func TestRemoveStudent_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "313385")
	internalID, err := f.deps.Resolver.Resolve(ctx, "313385")
	require.NoError(t, err)
	writes := f.records.Writes()

	res, err := command.NewRemoveStudentHandler(f.deps).Handle(ctx, command.RemoveStudentCommand{StudentID: "313385", DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.RecordDeleted)
	assert.Equal(t, internalID, res.InternalID)
	assert.Equal(t, writes, f.records.Writes())

	_, err = f.records.Get(ctx, internalID)
	require.NoError(t, err)
	_, err = f.deps.Resolver.Resolve(ctx, "313385")
	require.NoError(t, err)
}

func TestRemoveStudent_DeletesMappingAndRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1")
	internalID, err := f.deps.Resolver.Resolve(ctx, "1")
	require.NoError(t, err)

	res, err := command.NewRemoveStudentHandler(f.deps).Handle(ctx, command.RemoveStudentCommand{StudentID: "1"})
	require.NoError(t, err)
	assert.True(t, res.RecordDeleted)
	assert.Equal(t, internalID, res.InternalID)

	_, err = f.records.Get(ctx, internalID)
	assert.True(t, shared.IsNotFound(err))

	_, err = command.NewRemoveStudentHandler(f.deps).Handle(ctx, command.RemoveStudentCommand{StudentID: "1"})
	assert.True(t, shared.IsNotFound(err))
}

func TestRejectAppeal_RollsBackCurrentEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1", "2", "3", "4")
	_, err := command.NewIngestWrittenHandler(f.deps, command.DefaultIngestWrittenHandlerConfig()).
		Handle(ctx, writtenCmd("08/09/2023", []string{"1"}, map[string]*grade.WrittenRow{"1": row(20)}))
	require.NoError(t, err)
	_, err = command.NewIngestLeaderboardHandler(f.deps).Handle(ctx, leaderboardCmd("P1"))
	require.NoError(t, err)

	h := command.NewRejectAppealHandler(f.deps)
	res, err := h.Handle(ctx, command.RejectAppealCommand{StudentIDs: []string{"1", "42"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Merged)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, grade.Session{Written: "08/09/2023", Project: "P1"}, res.Session)

	rec := f.record(t, "1")
	assert.Empty(t, rec.WrittenGrades)
	assert.Empty(t, rec.ProjectGrades)
	assert.Equal(t, []string{"08/09/2023"}, rec.Rejected.Written)
	assert.Equal(t, []string{"P1"}, rec.Rejected.Project)
	assert.Equal(t, grade.OutcomeFailed, grade.Decide(rec, res.Session, grade.DefaultPassMark).Outcome)

	again, err := h.Handle(ctx, command.RejectAppealCommand{StudentIDs: []string{"1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Unchanged)
	assert.Equal(t, rec, f.record(t, "1"))
}

func TestRejectAppeal_WithoutMarkers(t *testing.T) {
	f := newFixture(t, "1")
	_, err := command.NewRejectAppealHandler(f.deps).Handle(context.Background(), command.RejectAppealCommand{StudentIDs: []string{"1"}})
	assert.ErrorIs(t, err, shared.ErrSessionNotSet)
}

// ─────────────────────────────────────────────────────────────────────────────
// Locking
// ─────────────────────────────────────────────────────────────────────────────

func TestLocalLocker_SingleWriter(t *testing.T) {
	ctx := context.Background()
	l := command.NewLocalLocker()

	release, err := l.Acquire(ctx, command.LockResource)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, command.LockResource)
	assert.ErrorIs(t, err, shared.ErrLocked)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	release, err = l.Acquire(ctx, command.LockResource)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestHandlers_RefuseWhileLockHeld(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1")
	locker := command.NewLocalLocker()
	f.deps.Locker = locker

	release, err := locker.Acquire(ctx, command.LockResource)
	require.NoError(t, err)
	defer release(ctx)

	_, err = command.NewIngestWrittenHandler(f.deps, command.DefaultIngestWrittenHandlerConfig()).
		Handle(ctx, writtenCmd("08/09/2023", []string{"1"}, nil))
	assert.ErrorIs(t, err, shared.ErrLocked)
	assert.Empty(t, f.record(t, "1").WrittenGrades)
}
