package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/notelens/notelens-backend/internal/platform/envutil"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := envutil.Str("POSTGRES_HOST", "localhost")
	postgresPort := envutil.Str("POSTGRES_PORT", "5432")
	postgresUser := envutil.Str("POSTGRES_USER", "postgres")
	postgresPassword := envutil.Str("POSTGRES_PASSWORD", "")
	postgresName := envutil.Str("POSTGRES_NAME", "notelens")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("connecting to postgres", "host", postgresHost, "port", postgresPort, "db", postgresName)
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("failed to connect to postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := gormDB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gormDB, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("auto migrating postgres tables")
	err := s.db.AutoMigrate(
		&types.Topic{},
		&types.ReferenceDocument{},
		&types.ReferenceChunk{},
		&types.ValidationResult{},
		&types.EnhancementProposal{},
	)
	if err != nil {
		s.log.Error("auto migration failed for postgres tables", "error", err)
		return err
	}

	constraints := []struct {
		name string
		stmt string
	}{
		{
			name: "fk_reference_chunk_reference_id",
			stmt: `
				ALTER TABLE "reference_chunk"
				ADD CONSTRAINT "fk_reference_chunk_reference_id"
				FOREIGN KEY ("reference_id")
				REFERENCES "reference_document"("id")
				ON DELETE CASCADE
			`,
		},
		{
			name: "fk_validation_result_topic_id",
			stmt: `
				ALTER TABLE "validation_result"
				ADD CONSTRAINT "fk_validation_result_topic_id"
				FOREIGN KEY ("topic_id")
				REFERENCES "topic"("id")
				ON DELETE CASCADE
			`,
		},
		{
			name: "fk_enhancement_proposal_topic_id",
			stmt: `
				ALTER TABLE "enhancement_proposal"
				ADD CONSTRAINT "fk_enhancement_proposal_topic_id"
				FOREIGN KEY ("topic_id")
				REFERENCES "topic"("id")
				ON DELETE CASCADE
			`,
		},
	}
	for _, c := range constraints {
		var exists bool
		s.db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = ?)`, c.name).Scan(&exists)
		if exists {
			continue
		}
		if err := s.db.Exec(c.stmt).Error; err != nil {
			return fmt.Errorf("failed to add %s: %w", c.name, err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
