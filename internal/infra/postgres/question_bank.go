package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"campus-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// BankLoader loads subject question banks (JSONB question arrays) from Postgres.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) LoadBank(ctx context.Context, subject string) (domain.SubjectBank, error) {
	bank := domain.SubjectBank{Subject: subject}
	var raw []byte
	err := l.pool.QueryRow(ctx,
		`SELECT icon, description, color, questions FROM quizzes WHERE subject=$1`,
		subject,
	).Scan(&bank.Icon, &bank.Description, &bank.Color, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SubjectBank{}, domain.ErrSubjectNotFound
	}
	if err != nil {
		return domain.SubjectBank{}, fmt.Errorf("load bank: %w", err)
	}
	if err := json.Unmarshal(raw, &bank.Questions); err != nil {
		return domain.SubjectBank{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	return bank, nil
}

func (l *BankLoader) ListSubjects(ctx context.Context) ([]domain.SubjectInfo, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT subject, icon, description, color FROM quizzes ORDER BY subject`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var infos []domain.SubjectInfo
	for rows.Next() {
		var info domain.SubjectInfo
		if err := rows.Scan(&info.Subject, &info.Icon, &info.Description, &info.Color); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}
