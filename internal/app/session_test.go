package app

import (
	"testing"
	"time"

	"campus-quiz-service/internal/domain"
)

func threeQuestionSet() domain.QuizSet {
	return domain.QuizSet{
		Subject: "Physics",
		Questions: []domain.Question{
			{Text: "Q1", Options: []string{"a", "b", "c", "d"}, CorrectOption: 1},
			{Text: "Q2", Options: []string{"a", "b", "c", "d"}, CorrectOption: 0},
			{Text: "Q3", Options: []string{"a", "b", "c", "d"}, CorrectOption: 2},
		},
	}
}

func testSession(t *testing.T, set domain.QuizSet, remaining int) *Session {
	t.Helper()
	return newSession("u1", set, remaining, time.Now)
}

func mustSelect(t *testing.T, s *Session, idx int) {
	t.Helper()
	if err := s.SelectOption(idx); err != nil {
		t.Fatalf("select %d: %v", idx, err)
	}
}

func mustCommit(t *testing.T, s *Session) {
	t.Helper()
	if err := s.CommitAnswer(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestAnswerSkipAnswerScenario(t *testing.T) {
	s := testSession(t, threeQuestionSet(), 900)

	// Q1: answer correctly.
	mustSelect(t, s, 1)
	mustCommit(t, s)
	if atEnd, err := s.Advance(); err != nil || atEnd {
		t.Fatalf("advance after Q1: atEnd=%v err=%v", atEnd, err)
	}

	// Q2: skip.
	if atEnd, err := s.Skip(); err != nil || atEnd {
		t.Fatalf("skip Q2: atEnd=%v err=%v", atEnd, err)
	}

	// Q3: answer incorrectly.
	mustSelect(t, s, 0)
	mustCommit(t, s)
	if atEnd, err := s.Advance(); err != nil || !atEnd {
		t.Fatalf("expected end of quiz, got atEnd=%v err=%v", atEnd, err)
	}

	review := s.Review()
	if review.Answered != 2 || review.Unanswered != 1 || review.Total != 3 {
		t.Fatalf("unexpected review: %+v", review)
	}

	summary, err := s.finalizeOnce()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if summary.Score != 1 || summary.Total != 3 || summary.Subject != "Physics" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestJumpRestoresCommittedState(t *testing.T) {
	s := testSession(t, threeQuestionSet(), 900)

	// Answer Q3 first, then look back at Q1.
	if err := s.JumpTo(2); err != nil {
		t.Fatalf("jump to Q3: %v", err)
	}
	mustSelect(t, s, 2)
	mustCommit(t, s)

	if err := s.JumpTo(0); err != nil {
		t.Fatalf("jump to Q1: %v", err)
	}
	view := s.View()
	if view.Selected != nil || view.Revealed {
		t.Fatalf("Q1 must show unset/unrevealed, got %+v", view)
	}

	// Back to Q3: the committed state must reproduce exactly.
	if err := s.JumpTo(2); err != nil {
		t.Fatalf("jump back to Q3: %v", err)
	}
	view = s.View()
	if view.Selected == nil || *view.Selected != 2 || !view.Revealed {
		t.Fatalf("Q3 must show its recorded answer revealed, got %+v", view)
	}
	if view.Correct == nil || *view.Correct != 2 {
		t.Fatalf("revealed view must expose the correct index, got %+v", view.Correct)
	}
}

func TestReAnswerOverwritesRecord(t *testing.T) {
	s := testSession(t, threeQuestionSet(), 900)

	// Commit an answer at Q1, then overwrite it with a skip.
	mustSelect(t, s, 1)
	mustCommit(t, s)
	if _, err := s.Skip(); err != nil {
		t.Fatalf("skip over answered Q1: %v", err)
	}
	snap := s.Snapshot()
	rec, ok := snap.Answers[0]
	if !ok || rec.Selected != nil || rec.IsCorrect {
		t.Fatalf("expected skip record at 0, got %+v (ok=%v)", rec, ok)
	}
	if len(snap.Answers) != 1 {
		t.Fatalf("expected a single overwritten record at 0, got %d", len(snap.Answers))
	}

	// A skipped question re-opens unrevealed, so it can be answered again.
	if err := s.JumpTo(0); err != nil {
		t.Fatalf("jump back: %v", err)
	}
	mustSelect(t, s, 1)
	mustCommit(t, s)
	snap = s.Snapshot()
	rec = snap.Answers[0]
	if rec.Selected == nil || *rec.Selected != 1 || !rec.IsCorrect {
		t.Fatalf("expected the new answer to replace the skip, got %+v", rec)
	}
}

func TestScoreRecomputedFromAnswers(t *testing.T) {
	// Two different navigation orders over the same final answers must
	// produce the same score.
	run := func(t *testing.T, answer func(s *Session)) domain.ScoreSummary {
		s := testSession(t, threeQuestionSet(), 900)
		answer(s)
		summary, err := s.finalizeOnce()
		if err != nil {
			t.Fatalf("finalize: %v", err)
		}
		return summary
	}

	forward := run(t, func(s *Session) {
		mustSelect(t, s, 1)
		mustCommit(t, s)
		_, _ = s.Advance()
		mustSelect(t, s, 0)
		mustCommit(t, s)
		_, _ = s.Advance()
		mustSelect(t, s, 2)
		mustCommit(t, s)
	})
	scattered := run(t, func(s *Session) {
		_ = s.JumpTo(2)
		mustSelect(t, s, 2)
		mustCommit(t, s)
		_ = s.JumpTo(0)
		mustSelect(t, s, 1)
		mustCommit(t, s)
		_ = s.JumpTo(1)
		mustSelect(t, s, 0)
		mustCommit(t, s)
	})

	if forward.Score != 3 || scattered.Score != 3 {
		t.Fatalf("expected score 3 both ways, got forward=%d scattered=%d", forward.Score, scattered.Score)
	}
}

func TestNavigationGuards(t *testing.T) {
	s := testSession(t, threeQuestionSet(), 900)

	if _, err := s.Advance(); err != domain.ErrNotRevealed {
		t.Fatalf("advance before reveal: got %v", err)
	}
	if err := s.Retreat(); err != nil {
		t.Fatalf("retreat at 0 must be a no-op, got %v", err)
	}
	if s.View().Position != 0 {
		t.Fatalf("position moved on no-op retreat")
	}
	if err := s.JumpTo(3); err != domain.ErrPositionOutOfRange {
		t.Fatalf("jump out of range: got %v", err)
	}
	if err := s.JumpTo(-1); err != domain.ErrPositionOutOfRange {
		t.Fatalf("jump to -1: got %v", err)
	}
	if err := s.CommitAnswer(); err != domain.ErrNoSelection {
		t.Fatalf("commit without selection: got %v", err)
	}
	if err := s.SelectOption(4); err != domain.ErrPositionOutOfRange {
		t.Fatalf("select out of range: got %v", err)
	}

	mustSelect(t, s, 1)
	mustCommit(t, s)
	if err := s.SelectOption(0); err != domain.ErrAlreadyRevealed {
		t.Fatalf("select after reveal: got %v", err)
	}
}

func TestToggleFlagRoundTrip(t *testing.T) {
	s := testSession(t, threeQuestionSet(), 900)

	on, err := s.ToggleFlag()
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !on {
		t.Fatalf("first toggle must set the flag")
	}
	_ = s.JumpTo(2)
	if _, err := s.ToggleFlag(); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Flagged) != 2 || snap.Flagged[0] != 0 || snap.Flagged[1] != 2 {
		t.Fatalf("expected sorted flags [0 2], got %v", snap.Flagged)
	}

	_ = s.JumpTo(0)
	on, err = s.ToggleFlag()
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if on {
		t.Fatalf("second toggle must clear the flag")
	}
	if got := s.Snapshot().Flagged; len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected flags [2], got %v", got)
	}
}

func TestRestoreSnapshot(t *testing.T) {
	set := domain.QuizSet{
		Subject: "Maths",
		Questions: []domain.Question{
			{Text: "Q1", Options: []string{"a", "b", "c"}, CorrectOption: 1},
			{Text: "Q2", Options: []string{"a", "b", "c"}, CorrectOption: 0},
			{Text: "Q3", Options: []string{"a", "b", "c"}, CorrectOption: 2},
			{Text: "Q4", Options: []string{"a", "b", "c"}, CorrectOption: 2},
			{Text: "Q5", Options: []string{"a", "b", "c"}, CorrectOption: 0},
		},
	}
	two := 2
	snap := domain.Snapshot{
		Subject:  "Maths",
		Position: 1,
		Answers: map[int]domain.AnswerRecord{
			0: {Question: "Q1", Selected: &two, Correct: 1, IsCorrect: false},
		},
		Flagged:       []int{3},
		RemainingTime: 400,
	}

	s := testSession(t, set, 1200)
	if err := s.restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}

	view := s.View()
	if view.Position != 1 || view.Remaining != 400 {
		t.Fatalf("expected position 1 remaining 400, got %+v", view)
	}
	if view.Selected != nil || view.Revealed {
		t.Fatalf("transient fields must reset on resume, got %+v", view)
	}
	got := s.Snapshot()
	if len(got.Answers) != 1 {
		t.Fatalf("expected one restored answer, got %d", len(got.Answers))
	}
	if rec := got.Answers[0]; rec.Selected == nil || *rec.Selected != 2 || rec.IsCorrect {
		t.Fatalf("restored answer mangled: %+v", rec)
	}
	if len(got.Flagged) != 1 || got.Flagged[0] != 3 {
		t.Fatalf("restored flags mangled: %v", got.Flagged)
	}

	// Ticking continues from the restored budget.
	if !s.tick() {
		t.Fatalf("tick must keep running")
	}
	if s.View().Remaining != 399 {
		t.Fatalf("expected 399 after one tick, got %d", s.View().Remaining)
	}
}

func TestStopSavesBlocksLaterCheckpoints(t *testing.T) {
	s := testSession(t, threeQuestionSet(), 900)
	saves := make(chan domain.Snapshot, 1)
	s.save = func(snap domain.Snapshot) { saves <- snap }

	s.CheckpointNow()
	select {
	case <-saves:
	default:
		t.Fatalf("expected a checkpoint before saves were retired")
	}

	s.stopSaves()
	s.CheckpointNow()
	select {
	case <-saves:
		t.Fatalf("checkpoint written after saves were retired")
	default:
	}
}

func TestNoCheckpointAfterFinalize(t *testing.T) {
	s := testSession(t, threeQuestionSet(), 900)
	saves := make(chan domain.Snapshot, 1)
	s.save = func(snap domain.Snapshot) { saves <- snap }

	if _, err := s.finalizeOnce(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	s.CheckpointNow()
	select {
	case <-saves:
		t.Fatalf("checkpoint written for a finished attempt")
	default:
	}
}

func TestRestoreRejectsSubjectMismatch(t *testing.T) {
	s := testSession(t, threeQuestionSet(), 900)
	err := s.restore(domain.Snapshot{Subject: "Chemistry"})
	if err != domain.ErrSubjectMismatch {
		t.Fatalf("expected subject mismatch, got %v", err)
	}
}
