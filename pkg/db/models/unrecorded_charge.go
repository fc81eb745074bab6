package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/quoteflow/pkg/enums"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

// UnrecordedCharge journals a gateway-approved charge whose transaction record
// could not be saved upstream. Rows stay open until support reconciles them.
type UnrecordedCharge struct {
	ID                   uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	FlowID               string                    `gorm:"column:flow_id;index"`
	QuoteID              string                    `gorm:"column:quote_id;not null"`
	OrderNumber          string                    `gorm:"column:order_number;not null;index"`
	GatewayTransactionID string                    `gorm:"column:gateway_transaction_id;not null;uniqueIndex:idx_unrecorded_charges_gateway_tx,where:gateway_transaction_id <> ''"`
	ApprovalCode         string                    `gorm:"column:approval_code"`
	AmountCents          int64                     `gorm:"column:amount_cents;not null"`
	Currency             string                    `gorm:"column:currency;not null;default:'USD'"`
	Customer             types.CustomerInfo        `gorm:"column:customer;type:jsonb"`
	FailureReason        string                    `gorm:"column:failure_reason;not null"`
	Payload              json.RawMessage           `gorm:"column:payload;type:jsonb"`
	Status               enums.ChargeJournalStatus `gorm:"column:status;not null;default:'open'"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the journal table name.
func (UnrecordedCharge) TableName() string {
	return "unrecorded_charges"
}
