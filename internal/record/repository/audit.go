package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/driveline/driveline-backend/pkg/database"
	"github.com/driveline/driveline-backend/pkg/errors"
)

// DecisionAudit is one processed driving record and its underwriting
// outcome. The board stays the system of record for driver state; this
// table exists so decisions can be reconstructed after the fact.
type DecisionAudit struct {
	ID              string         `db:"id" json:"id"`
	DriverID        string         `db:"driver_id" json:"driver_id"`
	Outcome         string         `db:"outcome" json:"outcome"`
	RiskTier        string         `db:"risk_tier" json:"risk_tier"`
	Excess          int            `db:"excess" json:"excess"`
	TotalPoints     int            `db:"total_points" json:"total_points"`
	Confidence      string         `db:"confidence" json:"confidence"`
	LicenseFragment *string        `db:"license_fragment" json:"license_fragment,omitempty"`
	RecordAgeDays   int            `db:"record_age_days" json:"record_age_days"`
	Reasons         pq.StringArray `db:"reasons" json:"reasons"`
	Issues          pq.StringArray `db:"issues" json:"issues"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// AuditRepository handles decision audit persistence
type AuditRepository struct {
	db *database.DB
}

func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit row
func (r *AuditRepository) Create(ctx context.Context, audit *DecisionAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}

	query := `
		INSERT INTO decision_audits (
			id, driver_id, outcome, risk_tier, excess, total_points,
			confidence, license_fragment, record_age_days, reasons, issues
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		audit.ID, audit.DriverID, audit.Outcome, audit.RiskTier, audit.Excess,
		audit.TotalPoints, audit.Confidence, audit.LicenseFragment,
		audit.RecordAgeDays, audit.Reasons, audit.Issues,
	).Scan(&audit.CreatedAt)
}

// GetByID gets an audit row by ID
func (r *AuditRepository) GetByID(ctx context.Context, id string) (*DecisionAudit, error) {
	var audit DecisionAudit
	query := `SELECT * FROM decision_audits WHERE id = $1`
	if err := r.db.GetContext(ctx, &audit, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("decision audit")
		}
		return nil, err
	}
	return &audit, nil
}

// LatestByDriver returns the most recent decision for a driver
func (r *AuditRepository) LatestByDriver(ctx context.Context, driverID string) (*DecisionAudit, error) {
	var audit DecisionAudit
	query := `
		SELECT * FROM decision_audits
		WHERE driver_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &audit, query, driverID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("decision audit")
		}
		return nil, err
	}
	return &audit, nil
}

// ListByDriver returns a driver's decisions, newest first
func (r *AuditRepository) ListByDriver(ctx context.Context, driverID string, limit int) ([]*DecisionAudit, error) {
	if limit <= 0 {
		limit = 20
	}
	var audits []*DecisionAudit
	query := `
		SELECT * FROM decision_audits
		WHERE driver_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &audits, query, driverID, limit); err != nil {
		return nil, err
	}
	return audits, nil
}
