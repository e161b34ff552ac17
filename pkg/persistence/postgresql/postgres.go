// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/corretor-crm/corretor/pkg/persistence/sqlbase"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	flows          *FlowRepository
	contacts       *ContactRepository
	conversations  *ConversationRepository
	messages       *MessageRepository
	settings       *SettingRepository
	leadLogs       *LeadLogRepository
	behaviorConfig *BehaviorConfigRepository
	sessions       *FlowSessionRepository
}

// NewPersistence connects to databaseURL and runs the pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	base := repository{db: database, logger: logger}

	return &Persistence{
		db:             database,
		logger:         logger,
		flows:          &FlowRepository{base},
		contacts:       &ContactRepository{base},
		conversations:  &ConversationRepository{base},
		messages:       &MessageRepository{base},
		settings:       &SettingRepository{base},
		leadLogs:       &LeadLogRepository{base},
		behaviorConfig: &BehaviorConfigRepository{base},
		sessions:       &FlowSessionRepository{base},
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) FlowRepository() persistence.FlowRepository { return p.flows }

func (p *Persistence) ContactRepository() persistence.ContactRepository { return p.contacts }

func (p *Persistence) ConversationRepository() persistence.ConversationRepository {
	return p.conversations
}

func (p *Persistence) MessageRepository() persistence.MessageRepository { return p.messages }

func (p *Persistence) SettingRepository() persistence.SettingRepository { return p.settings }

func (p *Persistence) LeadLogRepository() persistence.LeadLogRepository { return p.leadLogs }

func (p *Persistence) BehaviorConfigRepository() persistence.BehaviorConfigRepository {
	return p.behaviorConfig
}

func (p *Persistence) FlowSessionRepository() persistence.FlowSessionRepository {
	return p.sessions
}

// repository carries what every table repository needs.
type repository struct {
	db     *sql.DB
	logger *slog.Logger
}

type scanner interface {
	Scan(dest ...any) error
}

func (r repository) closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}

	return id.String(), nil
}
