package postgres

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"campus-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

var randomNames = []string{
	"Alex", "Jordan", "Taylor", "Morgan", "Casey",
	"Riley", "Jamie", "Quinn", "Avery", "Peyton",
	"Blake", "Hayden", "Cameron", "Reese", "Skyler",
}

// ScoreStore keeps users and their attempt history in Postgres.
type ScoreStore struct {
	pool *pgxpool.Pool
	rnd  *rand.Rand
}

func NewScoreStore(pool *pgxpool.Pool) *ScoreStore {
	return &ScoreStore{
		pool: pool,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Login finds or creates a user. An existing user keeps their display name;
// department and level refresh on every login.
func (s *ScoreStore) Login(ctx context.Context, matricNumber, department, level string) (domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (matric_number, name, department, level)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (matric_number) DO UPDATE SET
			department = EXCLUDED.department,
			level = COALESCE(NULLIF(EXCLUDED.level, ''), users.level)
		RETURNING matric_number, name, department, COALESCE(level, '')`,
		matricNumber, randomNames[s.rnd.Intn(len(randomNames))], department, level,
	).Scan(&user.MatricNumber, &user.Name, &user.Department, &user.Level)
	if err != nil {
		return domain.User{}, fmt.Errorf("login: %w", err)
	}
	return user, nil
}

func (s *ScoreStore) RecordAttempt(ctx context.Context, userID string, summary domain.ScoreSummary) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO attempts (matric_number, subject, score, total_questions)
		SELECT matric_number, $2, $3, $4 FROM users WHERE matric_number = $1`,
		userID, summary.Subject, summary.Score, summary.Total)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *ScoreStore) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.matric_number, u.name, u.department, COALESCE(u.level, ''),
		       COALESCE(SUM(a.score), 0) AS total
		FROM users u
		LEFT JOIN attempts a ON a.matric_number = u.matric_number
		GROUP BY u.matric_number, u.name, u.department, u.level
		ORDER BY total DESC, u.matric_number`)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.MatricNumber, &e.Name, &e.Department, &e.Level, &e.Score); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		e.Avatar = "https://api.dicebear.com/7.x/avataaars/svg?seed=" + e.MatricNumber
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Performance folds each student's attempts into per-subject score lists.
// Students with no attempts are left out.
func (s *ScoreStore) Performance(ctx context.Context) ([]domain.PerformanceReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.matric_number, u.name, u.department, a.subject, a.score
		FROM users u
		JOIN attempts a ON a.matric_number = u.matric_number
		ORDER BY u.matric_number, a.attempt_date, a.id`)
	if err != nil {
		return nil, fmt.Errorf("performance: %w", err)
	}
	defer rows.Close()

	var reports []domain.PerformanceReport
	var current *domain.PerformanceReport
	subjectIdx := map[string]int{}
	for rows.Next() {
		var matric, name, department, subject string
		var score int
		if err := rows.Scan(&matric, &name, &department, &subject, &score); err != nil {
			return nil, fmt.Errorf("scan performance row: %w", err)
		}
		if current == nil || current.MatricNumber != matric {
			reports = append(reports, domain.PerformanceReport{
				MatricNumber: matric,
				Name:         name,
				Department:   department,
			})
			current = &reports[len(reports)-1]
			subjectIdx = map[string]int{}
		}
		idx, ok := subjectIdx[subject]
		if !ok {
			idx = len(current.Performance)
			subjectIdx[subject] = idx
			current.Performance = append(current.Performance, domain.SubjectPerformance{Subject: subject})
		}
		current.Performance[idx].Attempts = append(current.Performance[idx].Attempts, score)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range reports {
		for j := range reports[i].Performance {
			p := &reports[i].Performance[j]
			sum := 0
			for _, score := range p.Attempts {
				sum += score
			}
			avg := float64(sum) / float64(len(p.Attempts))
			p.Average = float64(int(avg*100+0.5)) / 100
		}
	}
	return reports, nil
}
