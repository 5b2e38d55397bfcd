package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-quiz-service/internal/app"
	"campus-quiz-service/internal/config"
	"campus-quiz-service/internal/domain"
	"campus-quiz-service/internal/infra/memory"
	pgstore "campus-quiz-service/internal/infra/postgres"
	redisstore "campus-quiz-service/internal/infra/redis"
	transport "campus-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	snapshotTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleBanks())
	if pool != nil {
		loader = pgstore.NewBankLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.Quiz.BankTTL, 10*time.Minute)
	bank := memory.NewQuestionBank(loader, bankTTL, cfg.Quiz.SampleSize)

	var snapshots app.SnapshotStore
	if redisClient != nil {
		snapshots = redisstore.NewSnapshotStore(redisClient, snapshotTTL)
	} else {
		snapshots = memory.NewSnapshotStore()
	}

	var scores app.ScoreStore
	if pool != nil {
		scores = pgstore.NewScoreStore(pool)
	} else {
		scores = memory.NewScoreStore()
	}

	service := app.NewSessionService(bank, snapshots, scores, app.Policy{
		TimeBudget:          config.TTLDuration(cfg.Quiz.TimeBudget, 15*time.Minute),
		ExtendedTimeBudget:  config.TTLDuration(cfg.Quiz.ExtendedTimeBudget, 20*time.Minute),
		CalculationSubjects: cfg.Quiz.CalculationSubjects,
	})
	wsHandler := transport.NewWSHandler(service)
	restHandler := transport.NewHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	restHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleBanks provides a minimal demo data set; production runs load banks
// from Postgres instead.
func sampleBanks() map[string]domain.SubjectBank {
	return map[string]domain.SubjectBank{
		"Maths": {
			Subject:     "Maths",
			Icon:        "Calculator",
			Description: "Engineering mathematics",
			Color:       "#3b82f6",
			Questions: []domain.Question{
				{
					Text:          "What is the derivative of x^2?",
					Options:       []string{"x", "2x", "x^2", "2"},
					CorrectOption: 1,
					Explanation:   "d/dx x^n = n*x^(n-1).",
				},
				{
					Text:          "What is 7 * 8?",
					Options:       []string{"54", "56", "58", "64"},
					CorrectOption: 1,
				},
			},
		},
		"Engineering Drawing": {
			Subject:     "Engineering Drawing",
			Icon:        "PenTool",
			Description: "Projections and drafting basics",
			Color:       "#f59e0b",
			Questions: []domain.Question{
				{
					Text:          "Which projection places the object between the observer and the plane?",
					Options:       []string{"First angle", "Second angle", "Third angle", "Fourth angle"},
					CorrectOption: 0,
				},
			},
		},
	}
}
