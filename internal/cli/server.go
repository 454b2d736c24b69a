package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"district-exam-service/internal/app"
	"district-exam-service/internal/config"
	"district-exam-service/internal/domain"
	"district-exam-service/internal/infra/memory"
	examstore "district-exam-service/internal/infra/postgres"
	redisboard "district-exam-service/internal/infra/redis"
	transport "district-exam-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the exam server",
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

	var store app.Store
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = examstore.NewStore(pool)
	} else {
		// Demo mode: everything in memory, one sample exam preloaded.
		mem := memory.NewStore()
		if _, err := mem.ImportExam(ctx, sampleExam()); err != nil {
			return err
		}
		store = mem
		log.Printf("no postgres configured, running with in-memory store")
	}

	feed := app.NewFeed()
	service := app.NewExamService(store, feed)

	boardTTL := config.TTLDuration(cfg.Leaderboard.TTL, 5*time.Second)
	var boards app.LeaderboardSource
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		boards = redisboard.NewLeaderboardCache(client, service, boardTTL)
	} else {
		boards = memory.NewLeaderboardCache(service, boardTTL)
	}

	handler := transport.NewHandler(service, boards, cfg.Admin.Token)
	wsHandler := transport.NewWSHandler(boards, feed)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ws", wsHandler.ServeWS)
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exam service on :%s", finalPort)
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

// sampleExam seeds demo mode with one active exam.
func sampleExam() domain.ExamImport {
	now := time.Now()
	return domain.ExamImport{
		Title:            "General Knowledge Mock",
		Description:      "Demo exam available while the window is open",
		StartTime:        now.Add(-time.Hour),
		EndTime:          now.Add(time.Hour),
		MarksPerQuestion: 2,
		Questions: []domain.QuestionImport{
			{
				Prompt:        "What is 2 + 2?",
				Options:       []string{"3", "4", "5"},
				CorrectAnswer: "4",
				Explanation:   "Basic arithmetic.",
			},
			{
				Prompt:        "Which planet is closest to the sun?",
				Options:       []string{"Venus", "Earth", "Mercury"},
				CorrectAnswer: "Mercury",
				Explanation:   "Mercury orbits closest to the sun.",
			},
		},
	}
}
