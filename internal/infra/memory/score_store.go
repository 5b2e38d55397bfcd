package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"campus-quiz-service/internal/domain"
)

// randomNames seeds friendly display names for new students, matching the
// avatars on the leaderboard.
var randomNames = []string{
	"Alex", "Jordan", "Taylor", "Morgan", "Casey",
	"Riley", "Jamie", "Quinn", "Avery", "Peyton",
	"Blake", "Hayden", "Cameron", "Reese", "Skyler",
}

// ScoreStore is an in-memory implementation of app.ScoreStore.
type ScoreStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	attempts map[string][]domain.Attempt
	clock    func() time.Time
	rnd      *rand.Rand
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{
		users:    make(map[string]domain.User),
		attempts: make(map[string][]domain.Attempt),
		clock:    time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Login finds or creates the user for a matriculation number. New users get
// a random display name; returning users keep theirs.
func (s *ScoreStore) Login(_ context.Context, matricNumber, department, level string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[matricNumber]; ok {
		user.Department = department
		if level != "" {
			user.Level = level
		}
		s.users[matricNumber] = user
		return user, nil
	}

	user := domain.User{
		MatricNumber: matricNumber,
		Name:         randomNames[s.rnd.Intn(len(randomNames))],
		Department:   department,
		Level:        level,
	}
	s.users[matricNumber] = user
	return user, nil
}

func (s *ScoreStore) RecordAttempt(_ context.Context, userID string, summary domain.ScoreSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	s.attempts[userID] = append(s.attempts[userID], domain.Attempt{
		Subject:        summary.Subject,
		Score:          summary.Score,
		TotalQuestions: summary.Total,
		AttemptDate:    s.clock(),
	})
	return nil
}

func (s *ScoreStore) Leaderboard(_ context.Context) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.LeaderboardEntry, 0, len(s.users))
	for matric, user := range s.users {
		total := 0
		for _, attempt := range s.attempts[matric] {
			total += attempt.Score
		}
		entries = append(entries, domain.LeaderboardEntry{
			Name:         user.Name,
			MatricNumber: user.MatricNumber,
			Department:   user.Department,
			Level:        user.Level,
			Score:        total,
			Avatar:       avatarURL(matric),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].MatricNumber < entries[j].MatricNumber
	})
	return entries, nil
}

// Performance reports per-subject attempt history and averages for every
// student with at least one attempt.
func (s *ScoreStore) Performance(_ context.Context) ([]domain.PerformanceReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matrics := make([]string, 0, len(s.attempts))
	for matric := range s.attempts {
		if len(s.attempts[matric]) > 0 {
			matrics = append(matrics, matric)
		}
	}
	sort.Strings(matrics)

	reports := make([]domain.PerformanceReport, 0, len(matrics))
	for _, matric := range matrics {
		user := s.users[matric]
		reports = append(reports, domain.PerformanceReport{
			MatricNumber: matric,
			Name:         user.Name,
			Department:   user.Department,
			Performance:  groupBySubject(s.attempts[matric]),
		})
	}
	return reports, nil
}

// groupBySubject folds attempts into per-subject score lists in first-seen
// subject order.
func groupBySubject(attempts []domain.Attempt) []domain.SubjectPerformance {
	order := make([]string, 0)
	scores := make(map[string][]int)
	for _, attempt := range attempts {
		if _, ok := scores[attempt.Subject]; !ok {
			order = append(order, attempt.Subject)
		}
		scores[attempt.Subject] = append(scores[attempt.Subject], attempt.Score)
	}

	out := make([]domain.SubjectPerformance, 0, len(order))
	for _, subject := range order {
		list := scores[subject]
		sum := 0
		for _, score := range list {
			sum += score
		}
		out = append(out, domain.SubjectPerformance{
			Subject:  subject,
			Attempts: list,
			Average:  roundAverage(sum, len(list)),
		})
	}
	return out
}

func roundAverage(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	avg := float64(sum) / float64(n)
	// two decimal places, matching the report view
	return float64(int(avg*100+0.5)) / 100
}

func avatarURL(matric string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + matric
}
