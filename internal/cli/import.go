package cli

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"district-exam-service/internal/app"
	"district-exam-service/internal/config"
	"district-exam-service/internal/domain"
	examstore "district-exam-service/internal/infra/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewImportCmd loads an exam definition from a JSON file into the
// database, running the same validation and atomic insert the admin
// endpoint uses.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <exam.json>",
		Short: "Import an exam with its questions from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var imp domain.ExamImport
			if err := json.Unmarshal(data, &imp); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			service := app.NewExamService(examstore.NewStore(pool), nil)
			examID, err := service.Import(cmd.Context(), imp)
			if err != nil {
				return err
			}
			log.Printf("imported exam %d (%q, %d questions)", examID, imp.Title, len(imp.Questions))
			return nil
		},
	}
}
