package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"procurement/internal/config"
	"procurement/internal/models"
	postgres "procurement/internal/repository/db"
)

type Repository struct {
	db  *sqlx.DB
	cfg *config.PostgresConfig
	log *zap.Logger

	tenders *VersionedStore[models.Tender, tenderChanges]
	bids    *VersionedStore[bidRow, bidChanges]
}

// NewRepository opens the database described by cfg unless db is given, and
// applies migrations when cfg asks for it.
func NewRepository(ctx context.Context, db *sqlx.DB, cfg *config.PostgresConfig, log *zap.Logger) (*Repository, error) {
	var err error

	repo := &Repository{
		db:  db,
		cfg: cfg,
		log: log,
	}

	if repo.log == nil {
		repo.log = zap.NewNop()
	}

	if repo.cfg == nil {
		repo.cfg, err = config.NewPostgresConfig()
		if err != nil {
			return nil, fmt.Errorf("repository.NewRepository: could not load postgres config: %w", err)
		}
	}

	if repo.db == nil {
		repo.db, err = postgres.NewPostgresDB(ctx, repo.cfg, repo.log)
		if err != nil {
			return nil, fmt.Errorf("repository.NewRepository: could not open postgres db: %w", err)
		}
	}

	if repo.cfg.AutoMigrateUp {
		err = repo.MigrateUp()
		if err != nil {
			return nil, err
		}
	}

	repo.tenders = NewVersionedStore(repo.db, tenderSchema)
	repo.bids = NewVersionedStore(repo.db, bidSchema)

	return repo, nil
}

func (repo *Repository) MigrateUp() error {
	err := postgres.MigrateUp(repo.db.DB, repo.log)
	if err != nil {
		return fmt.Errorf("repository.Repository.MigrateUp: %w", err)
	}
	return nil
}

func (repo *Repository) MigrateDown() error {
	err := postgres.MigrateDown(repo.db.DB, repo.log)
	if err != nil {
		return fmt.Errorf("repository.Repository.MigrateDown: %w", err)
	}
	return nil
}

func (repo *Repository) Ping(ctx context.Context) error {
	if err := repo.db.PingContext(ctx); err != nil {
		return fmt.Errorf("repository.Repository.Ping: %w", err)
	}
	return nil
}

func (repo *Repository) Close() error {
	var migErr error
	if repo.cfg.AutoMigrateDown {
		migErr = repo.MigrateDown()
	}

	err := repo.db.Close()
	return errors.Join(migErr, err)
}

//// Identity

func (repo *Repository) EmployeeByUsername(ctx context.Context, username string, withOrganizations bool) (models.Employee, error) {
	employee, err := repo.employee(ctx, "username", username, withOrganizations)
	if err != nil {
		return employee, fmt.Errorf("repository.Repository.EmployeeByUsername: %w", err)
	}
	return employee, nil
}

func (repo *Repository) EmployeeByID(ctx context.Context, id string, withOrganizations bool) (models.Employee, error) {
	employee, err := repo.employee(ctx, "id", id, withOrganizations)
	if err != nil {
		return employee, fmt.Errorf("repository.Repository.EmployeeByID: %w", err)
	}
	return employee, nil
}

func (repo *Repository) employee(ctx context.Context, column, value string, withOrganizations bool) (models.Employee, error) {
	var employee models.Employee
	query := `
	SELECT
		id,
		username,
		first_name,
		last_name,
		created_at,
		updated_at
	FROM employee
	WHERE ` + column + ` = $1
	LIMIT 1
	`
	err := repo.db.GetContext(ctx, &employee, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return employee, models.ErrNoEmployee
	} else if err != nil {
		return employee, translateErr(err)
	}

	if !withOrganizations {
		return employee, nil
	}

	employee.OrganizationIds = []string{}
	err = repo.db.SelectContext(ctx, &employee.OrganizationIds, `
	SELECT organization_id
	FROM organization_responsible
	WHERE user_id = $1
	ORDER BY organization_id
	`, employee.Id)
	if err != nil {
		return employee, fmt.Errorf("organizations of %s: %w", employee.Id, translateErr(err))
	}
	return employee, nil
}

func (repo *Repository) OrganizationExists(ctx context.Context, organizationId string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM organization WHERE id = $1)", organizationId)
	if err != nil {
		return false, fmt.Errorf("repository.Repository.OrganizationExists: %w", translateErr(err))
	}
	return exists, nil
}

func (repo *Repository) ResponsibleCount(ctx context.Context, organizationId string) (int, error) {
	count, err := responsibleCount(ctx, repo.db, organizationId)
	if err != nil {
		return 0, fmt.Errorf("repository.Repository.ResponsibleCount: %w", err)
	}
	return count, nil
}

func responsibleCount(ctx context.Context, q sqlx.QueryerContext, organizationId string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, "SELECT COUNT(*) FROM organization_responsible WHERE organization_id = $1", organizationId)
	return count, translateErr(err)
}

//// Service

func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", translateErr(err))
	}

	if err = fn(tx); err != nil {
		return wrapRollbackErr(tx, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translateErr(err))
	}
	return nil
}

func wrapRollbackErr(tx *sqlx.Tx, err error) error {
	rollerr := tx.Rollback()
	if rollerr == nil {
		return err
	}
	return fmt.Errorf("failed to rollback transaction after previous error: %w, %w", rollerr, err)
}

// translateErr maps transient postgres failures to models.ErrConflict so the
// caller may retry the whole operation.
func translateErr(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "40001", "40P01", "23505":
		return fmt.Errorf("%w: %w", models.ErrConflict, err)
	}
	return err
}

//// Test utils

func (repo *Repository) TestGetDB() *sqlx.DB {
	return repo.db
}
