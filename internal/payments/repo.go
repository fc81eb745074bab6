package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/quoteflow/pkg/db"
	"github.com/angelmondragon/quoteflow/pkg/db/models"
	"github.com/angelmondragon/quoteflow/pkg/enums"
)

const gatewayTxIndex = "idx_unrecorded_charges_gateway_tx"

// Journal persists approved charges that the backend never recorded.
type Journal interface {
	RecordUnrecorded(ctx context.Context, charge *models.UnrecordedCharge) error
	ListOpen(ctx context.Context, limit int) ([]models.UnrecordedCharge, error)
	CountOpen(ctx context.Context) (int64, error)
	Resolve(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns the unrecorded charge journal bound to db.
func NewRepository(db *gorm.DB) Journal {
	return &repository{db: db}
}

// RecordUnrecorded inserts the charge once per gateway transaction. A repeat
// for a journaled transaction loads the existing row into charge instead.
func (r *repository) RecordUnrecorded(ctx context.Context, charge *models.UnrecordedCharge) error {
	if charge.ID == uuid.Nil {
		charge.ID = uuid.New()
	}
	if strings.TrimSpace(charge.Currency) == "" {
		charge.Currency = "USD"
	}
	if charge.Status == "" {
		charge.Status = enums.ChargeJournalStatusOpen
	}
	err := r.db.WithContext(ctx).Create(charge).Error
	if err == nil || charge.GatewayTransactionID == "" || !db.IsUniqueViolation(err, gatewayTxIndex) {
		return err
	}
	var existing models.UnrecordedCharge
	if err := r.db.WithContext(ctx).
		Where("gateway_transaction_id = ?", charge.GatewayTransactionID).
		First(&existing).Error; err != nil {
		return err
	}
	*charge = existing
	return nil
}

func (r *repository) ListOpen(ctx context.Context, limit int) ([]models.UnrecordedCharge, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.UnrecordedCharge
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.ChargeJournalStatusOpen).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountOpen(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.UnrecordedCharge{}).
		Where("status = ?", enums.ChargeJournalStatusOpen).
		Count(&n).Error
	return n, err
}

func (r *repository) Resolve(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.UnrecordedCharge{}).
		Where("id = ?", id).
		Update("status", enums.ChargeJournalStatusResolved)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
