package app

import (
	"sort"
	"sync"
	"time"

	"campus-quiz-service/internal/domain"
)

const (
	// warningThreshold is the remaining-seconds mark below which the
	// countdown display switches to its warning state. Once set, the
	// warning stays on until the timer stops.
	warningThreshold = 60
	// checkpointEveryTicks bounds data loss on crash: a snapshot is
	// pushed every 30 seconds of play regardless of user activity.
	checkpointEveryTicks = 30
)

// EventType labels session events delivered to watchers.
type EventType string

const (
	EventTick         EventType = "tick"
	EventFinalized    EventType = "finalized"
	EventSubmitFailed EventType = "submitFailed"
)

// Event is pushed to session watchers as the timer ticks and when the
// attempt is finalized.
type Event struct {
	Type      EventType
	Remaining int
	Warning   bool
	Summary   domain.ScoreSummary
	Message   string
}

// QuestionView is the transport-facing projection of the current question.
// Correct index and explanation are only populated after the reveal.
type QuestionView struct {
	Subject     string   `json:"subject"`
	Position    int      `json:"position"`
	Total       int      `json:"total"`
	Text        string   `json:"text"`
	Image       string   `json:"image,omitempty"`
	Options     []string `json:"options"`
	Selected    *int     `json:"selected"`
	Revealed    bool     `json:"revealed"`
	Correct     *int     `json:"correct,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	Flagged     bool     `json:"flagged"`
	Answered    []int    `json:"answered"`
	FlaggedAll  []int    `json:"flaggedAll"`
	Remaining   int      `json:"remaining"`
	Warning     bool     `json:"warning"`
}

// Session is one user's attempt at a quiz set: current position, committed
// answers, flags, the countdown, and the transient pre-commit UI state.
// All mutation goes through its methods; the timer goroutine is the only
// concurrent caller.
type Session struct {
	userID string
	set    domain.QuizSet

	mu        sync.Mutex
	position  int
	answers   map[int]domain.AnswerRecord
	flagged   map[int]struct{}
	remaining int
	selected  *int // transient, never persisted
	revealed  bool // transient, never persisted
	warning   bool
	finished  bool
	expired   bool
	ticks     int

	timer *timer
	now   func() time.Time

	// save persists a snapshot; it must not block the caller, so the
	// session captures the payload synchronously and hands it off.
	// saveSeq/savedSeq keep overlapping writes from letting a stale
	// snapshot overwrite a newer one; saveStopped retires the session's
	// writes for good once its resume slot is handed over or consumed.
	save        func(domain.Snapshot)
	saveMu      sync.Mutex
	saveSeq     uint64
	savedSeq    uint64
	saveStopped bool
	// onExpire runs forced finalization when the countdown hits zero.
	onExpire func()

	subMu       sync.Mutex
	subscribers map[chan Event]struct{}
}

func newSession(userID string, set domain.QuizSet, remaining int, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		userID:      userID,
		set:         set,
		remaining:   remaining,
		now:         now,
		answers:     make(map[int]domain.AnswerRecord),
		flagged:     make(map[int]struct{}),
		subscribers: make(map[chan Event]struct{}),
	}
}

// restore applies a persisted snapshot onto a freshly constructed session.
// Transient fields stay unset; they are never persisted.
func (s *Session) restore(snap domain.Snapshot) error {
	if snap.Subject != s.set.Subject {
		return domain.ErrSubjectMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.set.Questions)
	if snap.Position >= 0 && snap.Position < total {
		s.position = snap.Position
	}
	for pos, rec := range snap.Answers {
		if pos >= 0 && pos < total {
			s.answers[pos] = rec
		}
	}
	for _, pos := range snap.Flagged {
		if pos >= 0 && pos < total {
			s.flagged[pos] = struct{}{}
		}
	}
	if snap.RemainingTime > 0 {
		s.remaining = snap.RemainingTime
	}
	return nil
}

// Subject returns the subject this attempt is for.
func (s *Session) Subject() string { return s.set.Subject }

// SelectOption stages an option before commit. Rejected once the answer
// for the current question has been revealed.
func (s *Session) SelectOption(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return domain.ErrSessionFinished
	}
	if s.revealed {
		return domain.ErrAlreadyRevealed
	}
	if idx < 0 || idx >= len(s.set.Questions[s.position].Options) {
		return domain.ErrPositionOutOfRange
	}
	v := idx
	s.selected = &v
	return nil
}

// CommitAnswer evaluates the staged selection into a record for the current
// position, overwriting any prior record, and reveals the outcome.
func (s *Session) CommitAnswer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return domain.ErrSessionFinished
	}
	if s.selected == nil {
		return domain.ErrNoSelection
	}
	s.answers[s.position] = Evaluate(s.set.Questions[s.position], s.selected)
	s.revealed = true
	s.checkpointLocked()
	return nil
}

// Advance moves to the next question, restoring whatever was last committed
// there. Only valid after the current answer was revealed. On the last
// question it reports atEnd instead of moving; the caller then drives the
// submission review.
func (s *Session) Advance() (atEnd bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false, domain.ErrSessionFinished
	}
	if !s.revealed {
		return false, domain.ErrNotRevealed
	}
	if s.position == len(s.set.Questions)-1 {
		return true, nil
	}
	s.arriveLocked(s.position + 1)
	s.checkpointLocked()
	return false, nil
}

// Retreat moves back one question. No-op at position 0.
func (s *Session) Retreat() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return domain.ErrSessionFinished
	}
	if s.position == 0 {
		return nil
	}
	s.arriveLocked(s.position - 1)
	s.checkpointLocked()
	return nil
}

// JumpTo moves directly to any position, used by the question navigator grid.
func (s *Session) JumpTo(pos int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return domain.ErrSessionFinished
	}
	if pos < 0 || pos >= len(s.set.Questions) {
		return domain.ErrPositionOutOfRange
	}
	s.arriveLocked(pos)
	s.checkpointLocked()
	return nil
}

// Skip commits a null-selection record (scored incorrect) for the current
// position and moves on without requiring a selection or a reveal.
func (s *Session) Skip() (atEnd bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false, domain.ErrSessionFinished
	}
	s.answers[s.position] = Evaluate(s.set.Questions[s.position], nil)
	if s.position == len(s.set.Questions)-1 {
		s.checkpointLocked()
		return true, nil
	}
	s.arriveLocked(s.position + 1)
	s.checkpointLocked()
	return false, nil
}

// ToggleFlag toggles the bookmark on the current question and reports the
// new state. Flags have no scoring effect.
func (s *Session) ToggleFlag() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false, domain.ErrSessionFinished
	}
	if _, ok := s.flagged[s.position]; ok {
		delete(s.flagged, s.position)
	} else {
		s.flagged[s.position] = struct{}{}
	}
	_, on := s.flagged[s.position]
	s.checkpointLocked()
	return on, nil
}

// arriveLocked sets the position and rebuilds the transient fields from the
// committed record, so revisiting a question deterministically reproduces
// what was last done there. A skip record re-opens unrevealed so the user
// may still answer it.
func (s *Session) arriveLocked(pos int) {
	s.position = pos
	rec, ok := s.answers[pos]
	if ok && rec.Selected != nil {
		v := *rec.Selected
		s.selected = &v
		s.revealed = true
		return
	}
	s.selected = nil
	s.revealed = false
}

// Review returns the counts shown on the submission confirmation step.
// Skipped records count as unanswered there, same as absent ones.
func (s *Session) Review() domain.SubmitReview {
	s.mu.Lock()
	defer s.mu.Unlock()
	answered := 0
	for _, rec := range s.answers {
		if rec.Selected != nil {
			answered++
		}
	}
	total := len(s.set.Questions)
	return domain.SubmitReview{
		Answered:   answered,
		Unanswered: total - answered,
		Total:      total,
	}
}

// View projects the current question for the transport layer.
func (s *Session) View() QuestionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.set.Questions[s.position]
	view := QuestionView{
		Subject:   s.set.Subject,
		Position:  s.position,
		Total:     len(s.set.Questions),
		Text:      q.Text,
		Image:     q.Image,
		Options:   q.Options,
		Selected:  s.selected,
		Revealed:  s.revealed,
		Remaining: s.remaining,
		Warning:   s.warning,
	}
	if s.revealed {
		c := q.CorrectOption
		view.Correct = &c
		view.Explanation = q.Explanation
	}
	if _, ok := s.flagged[s.position]; ok {
		view.Flagged = true
	}
	view.Answered = sortedKeys(s.answers)
	view.FlaggedAll = sortedSet(s.flagged)
	return view
}

// finalizeOnce computes the score summary and closes the session. The score
// is always recomputed from the answers mapping, never from a running
// counter, so re-answered questions cannot double-count. The caller submits
// the summary; reopen undoes the close if submission fails.
func (s *Session) finalizeOnce() (domain.ScoreSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return domain.ScoreSummary{}, domain.ErrSessionFinished
	}
	s.finished = true
	if s.timer != nil {
		s.timer.Stop()
	}
	score := 0
	for _, rec := range s.answers {
		if rec.IsCorrect {
			score++
		}
	}
	return domain.ScoreSummary{
		Subject: s.set.Subject,
		Score:   score,
		Total:   len(s.set.Questions),
	}, nil
}

// reopen preserves the session for a submission retry.
func (s *Session) reopen() {
	s.mu.Lock()
	s.finished = false
	s.mu.Unlock()
}

// tick advances the countdown by one second. Returns false once the timer
// should stop ticking. Expiry hands off to onExpire exactly once, outside
// the lock.
func (s *Session) tick() bool {
	s.mu.Lock()
	if s.finished || s.expired {
		s.mu.Unlock()
		return false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining < warningThreshold {
		s.warning = true
	}
	s.ticks++
	if s.ticks%checkpointEveryTicks == 0 {
		s.checkpointLocked()
	}
	remaining := s.remaining
	warning := s.warning
	expired := remaining <= 0
	if expired {
		s.expired = true
	}
	onExpire := s.onExpire
	s.mu.Unlock()

	s.emit(Event{Type: EventTick, Remaining: remaining, Warning: warning})
	if expired {
		if onExpire != nil {
			go onExpire()
		}
		return false
	}
	return true
}

// startTicking replaces any running timer with a fresh one. At most one
// timer may tick against a session.
func (s *Session) startTicking(interval time.Duration) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = startTimer(interval, s.tick)
	s.mu.Unlock()
}

// StopTimer cancels the countdown. Idempotent; called on every exit path.
func (s *Session) StopTimer() {
	s.mu.Lock()
	t := s.timer
	s.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

// Snapshot captures the persisted form of the session as of now.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.Snapshot {
	answers := make(map[int]domain.AnswerRecord, len(s.answers))
	for pos, rec := range s.answers {
		answers[pos] = rec
	}
	return domain.Snapshot{
		Subject:       s.set.Subject,
		Position:      s.position,
		Answers:       answers,
		Flagged:       sortedSet(s.flagged),
		RemainingTime: s.remaining,
		LastUpdated:   s.now(),
	}
}

// checkpointLocked captures the snapshot synchronously with the triggering
// event and hands it off without blocking; a slow store must not stall the
// countdown or navigation.
func (s *Session) checkpointLocked() {
	if s.save == nil || s.finished {
		return
	}
	s.saveSeq++
	seq := s.saveSeq
	snap := s.snapshotLocked()
	go s.writeSnapshot(seq, snap)
}

// CheckpointNow writes the current state synchronously, used when the user
// leaves the quiz so the resume point is up to date before the session goes
// away.
func (s *Session) CheckpointNow() {
	s.mu.Lock()
	if s.save == nil || s.finished {
		s.mu.Unlock()
		return
	}
	s.saveSeq++
	seq := s.saveSeq
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.writeSnapshot(seq, snap)
}

func (s *Session) writeSnapshot(seq uint64, snap domain.Snapshot) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.saveStopped || seq <= s.savedSeq {
		// retired, or a newer snapshot already went out
		return
	}
	s.savedSeq = seq
	s.save(snap)
}

// stopSaves retires the session's checkpoint writes: any write already in
// flight finishes before this returns, and every later one is dropped.
// Called when the session loses ownership of the resume slot, either to a
// replacement attempt or because submission consumed it.
func (s *Session) stopSaves() {
	s.saveMu.Lock()
	s.saveStopped = true
	s.saveMu.Unlock()
}

// Watch subscribes to session events. The cancel func must be called to
// avoid leaks.
func (s *Session) Watch() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *Session) emit(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop the oldest pending event rather than block the timer.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func sortedKeys(m map[int]domain.AnswerRecord) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// sortedSet converts the in-memory flag set to its serialized list form.
func sortedSet(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
