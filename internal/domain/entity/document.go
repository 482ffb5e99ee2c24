package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document is a purchase order, RFQ or issue whose status is driven by a workflow
type Document struct {
	ID          string          `json:"id"`
	Type        DocumentType    `json:"type"`
	CompanyID   string          `json:"company_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	SupplierID  string          `json:"supplier_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	CreatedBy   string          `json:"created_by"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
