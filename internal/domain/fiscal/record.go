package fiscal

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cclastrib/backend/internal/domain/shared"
)

// ClassificationRecord is the persisted audit trail of one
// classification answer, cached hits included.
type ClassificationRecord struct {
	shared.BaseEntity

	RequestID     string
	Regime        string
	CFOP          string
	UFEmitter     string
	UFDestination string
	CSTICMS       string
	NCM           string
	EmissionYear  int

	ClassTribCode string
	CST           string
	CClassTrib    string
	IBSRate       decimal.Decimal
	CBSRate       decimal.Decimal
	Confidence    float64
	Cached        bool
	AlertCount    int
	PendencyCount int
}

// NewClassificationRecord builds the audit row for a classified
// operation.
func NewClassificationRecord(requestID string, op Operation, c Classification, cached bool) *ClassificationRecord {
	return &ClassificationRecord{
		BaseEntity:    shared.NewBaseEntity(),
		RequestID:     requestID,
		Regime:        op.Regime,
		CFOP:          op.CFOP,
		UFEmitter:     op.UFEmitter,
		UFDestination: op.UFDestination,
		CSTICMS:       op.CSTICMS,
		NCM:           NormalizeNCM(op.NCM),
		EmissionYear:  op.EmissionDate.Year(),
		ClassTribCode: c.ClassTrib.Code,
		CST:           c.CST,
		CClassTrib:    c.CClassTrib,
		IBSRate:       c.IBSRate,
		CBSRate:       c.CBSRate,
		Confidence:    c.Confidence,
		Cached:        cached,
		AlertCount:    len(c.Alerts),
		PendencyCount: len(c.Pendencies),
	}
}

// ClassificationRecordRepository persists and queries audit rows.
type ClassificationRecordRepository interface {
	Save(ctx context.Context, record *ClassificationRecord) error
	FindAll(ctx context.Context, filter shared.Filter) ([]ClassificationRecord, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
