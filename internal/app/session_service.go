package app

import (
	"context"
	"log"
	"sync"
	"time"

	"campus-quiz-service/internal/domain"
)

// QuestionBank supplies subject question sets (randomly sampled per attempt).
type QuestionBank interface {
	ListSubjects(ctx context.Context) ([]domain.SubjectInfo, error)
	FetchQuizSet(ctx context.Context, subject string) (domain.QuizSet, error)
}

// SnapshotStore persists the single resume slot per user.
type SnapshotStore interface {
	Save(ctx context.Context, userID string, snap domain.Snapshot) error
	Load(ctx context.Context, userID string) (domain.Snapshot, error)
	Clear(ctx context.Context, userID string) error
}

// ScoreStore owns user identity and the attempt history behind the
// leaderboard and performance views.
type ScoreStore interface {
	Login(ctx context.Context, matricNumber, department, level string) (domain.User, error)
	RecordAttempt(ctx context.Context, userID string, summary domain.ScoreSummary) error
	Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error)
	Performance(ctx context.Context) ([]domain.PerformanceReport, error)
}

// Policy is the static attempt configuration: time budgets and which
// subjects get the extended one.
type Policy struct {
	TimeBudget          time.Duration
	ExtendedTimeBudget  time.Duration
	CalculationSubjects []string
	TickInterval        time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.TimeBudget <= 0 {
		p.TimeBudget = 15 * time.Minute
	}
	if p.ExtendedTimeBudget <= 0 {
		p.ExtendedTimeBudget = 20 * time.Minute
	}
	if p.CalculationSubjects == nil {
		p.CalculationSubjects = []string{"Maths", "Physics", "Chemistry"}
	}
	if p.TickInterval <= 0 {
		p.TickInterval = time.Second
	}
	return p
}

// budgetSeconds applies the calculation-heavy allow-list.
func (p Policy) budgetSeconds(subject string) int {
	for _, s := range p.CalculationSubjects {
		if s == subject {
			return int(p.ExtendedTimeBudget / time.Second)
		}
	}
	return int(p.TimeBudget / time.Second)
}

// SessionService owns the active attempts, at most one per user, and wires
// them to the question bank, snapshot store, and score store.
type SessionService struct {
	bank      QuestionBank
	snapshots SnapshotStore
	scores    ScoreStore
	policy    Policy
	now       func() time.Time

	mu     sync.Mutex
	active map[string]*Session
}

func NewSessionService(bank QuestionBank, snapshots SnapshotStore, scores ScoreStore, policy Policy) *SessionService {
	return &SessionService{
		bank:      bank,
		snapshots: snapshots,
		scores:    scores,
		policy:    policy.withDefaults(),
		now:       time.Now,
		active:    make(map[string]*Session),
	}
}

// Begin is the single lifecycle entry point for both fresh starts and
// resumes; the two differ only in initial state construction. Starting a
// new attempt discards any prior active one for the user.
func (svc *SessionService) Begin(ctx context.Context, userID, subject string, resume bool) (*Session, error) {
	set, err := svc.bank.FetchQuizSet(ctx, subject)
	if err != nil {
		return nil, err
	}
	if len(set.Questions) == 0 {
		return nil, domain.ErrEmptyQuizSet
	}

	sess := newSession(userID, set, svc.policy.budgetSeconds(subject), svc.now)
	if resume {
		snap, err := svc.snapshots.Load(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := sess.restore(snap); err != nil {
			return nil, err
		}
	}

	sess.save = func(snap domain.Snapshot) {
		// Best-effort: a failed checkpoint is retried by the next
		// navigation event or periodic tick.
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.snapshots.Save(saveCtx, userID, snap); err != nil {
			log.Printf("checkpoint for %s failed: %v", userID, err)
		}
	}
	sess.onExpire = func() {
		summary, err := svc.Submit(context.Background(), userID)
		if err != nil {
			log.Printf("forced submit for %s failed: %v", userID, err)
			sess.emit(Event{Type: EventSubmitFailed, Message: err.Error()})
			return
		}
		sess.emit(Event{Type: EventFinalized, Summary: summary})
	}

	svc.mu.Lock()
	prev := svc.active[userID]
	svc.active[userID] = sess
	svc.mu.Unlock()

	// The replaced attempt must not write the resume slot again: stopSaves
	// drains its in-flight checkpoint before the new session claims the slot.
	if prev != nil {
		prev.StopTimer()
		prev.stopSaves()
	}

	// Write the initial resume point before the first tick.
	sess.CheckpointNow()

	sess.startTicking(svc.policy.TickInterval)
	return sess, nil
}

// Session returns the user's active attempt, if any.
func (svc *SessionService) Session(userID string) (*Session, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	sess, ok := svc.active[userID]
	return sess, ok
}

// PendingResume reports the user's saved resume point, if one exists.
func (svc *SessionService) PendingResume(ctx context.Context, userID string) (domain.Snapshot, error) {
	return svc.snapshots.Load(ctx, userID)
}

// Submit finalizes the user's attempt: the score is recomputed from the
// answers mapping, recorded, and the resume slot consumed. On a failed
// recording the session is reopened so the user can retry without losing
// answers.
func (svc *SessionService) Submit(ctx context.Context, userID string) (domain.ScoreSummary, error) {
	svc.mu.Lock()
	sess, ok := svc.active[userID]
	svc.mu.Unlock()
	if !ok {
		return domain.ScoreSummary{}, domain.ErrSessionNotFound
	}

	summary, err := sess.finalizeOnce()
	if err != nil {
		return domain.ScoreSummary{}, err
	}
	if err := svc.scores.RecordAttempt(ctx, userID, summary); err != nil {
		sess.reopen()
		return domain.ScoreSummary{}, err
	}
	// Drain any in-flight checkpoint before consuming the slot, so a late
	// write cannot resurrect the finished attempt.
	sess.stopSaves()
	if err := svc.snapshots.Clear(ctx, userID); err != nil {
		log.Printf("clear resume slot for %s failed: %v", userID, err)
	}

	svc.mu.Lock()
	if svc.active[userID] == sess {
		delete(svc.active, userID)
	}
	svc.mu.Unlock()

	return summary, nil
}

// Discard releases the attempt when the user navigates away. The countdown
// stops and a final checkpoint is written so the attempt can be resumed.
func (svc *SessionService) Discard(ctx context.Context, userID string) {
	svc.mu.Lock()
	sess, ok := svc.active[userID]
	if ok {
		delete(svc.active, userID)
	}
	svc.mu.Unlock()
	if !ok {
		return
	}
	sess.StopTimer()
	sess.CheckpointNow()
}

// Login finds or creates the user record for a matriculation number.
func (svc *SessionService) Login(ctx context.Context, matricNumber, department, level string) (domain.User, error) {
	return svc.scores.Login(ctx, matricNumber, department, level)
}

// ListSubjects returns the available subjects.
func (svc *SessionService) ListSubjects(ctx context.Context) ([]domain.SubjectInfo, error) {
	return svc.bank.ListSubjects(ctx)
}

// Leaderboard returns students ordered by aggregate score.
func (svc *SessionService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return svc.scores.Leaderboard(ctx)
}

// Performance returns per-student subject averages for students with at
// least one attempt.
func (svc *SessionService) Performance(ctx context.Context) ([]domain.PerformanceReport, error) {
	return svc.scores.Performance(ctx)
}
