package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"campus-quiz-service/internal/config"
	"campus-quiz-service/internal/domain"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewSeedCmd loads the demo subject banks into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the question banks with demo subjects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	for _, bank := range sampleBanks() {
		if err := upsertBank(ctx, db, bank); err != nil {
			return err
		}
		log.Printf("seeded %s (%d questions)", bank.Subject, len(bank.Questions))
	}
	return nil
}

func upsertBank(ctx context.Context, db *bun.DB, bank domain.SubjectBank) error {
	data, err := json.Marshal(bank.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO quizzes (subject, icon, description, color, questions)
		VALUES (?, ?, ?, ?, ?::jsonb)
		ON CONFLICT (subject) DO UPDATE SET
			icon = EXCLUDED.icon,
			description = EXCLUDED.description,
			color = EXCLUDED.color,
			questions = EXCLUDED.questions`,
		bank.Subject, bank.Icon, bank.Description, bank.Color, string(data))
	if err != nil {
		return fmt.Errorf("seed %s: %w", bank.Subject, err)
	}
	return nil
}
