package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cclastrib/backend/internal/domain/fiscal"
	"github.com/cclastrib/backend/internal/domain/shared"
)

// ClassificationRecordModel is the persistence shape of a
// classification audit row.
type ClassificationRecordModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	CreatedAt     time.Time       `gorm:"not null;index"`
	UpdatedAt     time.Time       `gorm:"not null"`
	RequestID     string          `gorm:"type:varchar(64);index"`
	Regime        string          `gorm:"type:varchar(32)"`
	CFOP          string          `gorm:"type:varchar(8)"`
	UFEmitter     string          `gorm:"type:varchar(2)"`
	UFDestination string          `gorm:"type:varchar(2)"`
	CSTICMS       string          `gorm:"type:varchar(8)"`
	NCM           string          `gorm:"type:varchar(10);index"`
	EmissionYear  int             `gorm:"index"`
	ClassTribCode string          `gorm:"type:varchar(64)"`
	CST           string          `gorm:"type:varchar(8)"`
	CClassTrib    string          `gorm:"type:varchar(8)"`
	IBSRate       decimal.Decimal `gorm:"type:numeric(12,6)"`
	CBSRate       decimal.Decimal `gorm:"type:numeric(12,6)"`
	Confidence    float64
	Cached        bool
	AlertCount    int
	PendencyCount int
}

// TableName sets the table name for GORM
func (ClassificationRecordModel) TableName() string {
	return "classification_records"
}

// ToDomain converts the model to the domain entity
func (m *ClassificationRecordModel) ToDomain() fiscal.ClassificationRecord {
	return fiscal.ClassificationRecord{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		RequestID:     m.RequestID,
		Regime:        m.Regime,
		CFOP:          m.CFOP,
		UFEmitter:     m.UFEmitter,
		UFDestination: m.UFDestination,
		CSTICMS:       m.CSTICMS,
		NCM:           m.NCM,
		EmissionYear:  m.EmissionYear,
		ClassTribCode: m.ClassTribCode,
		CST:           m.CST,
		CClassTrib:    m.CClassTrib,
		IBSRate:       m.IBSRate,
		CBSRate:       m.CBSRate,
		Confidence:    m.Confidence,
		Cached:        m.Cached,
		AlertCount:    m.AlertCount,
		PendencyCount: m.PendencyCount,
	}
}

func modelFromDomain(r *fiscal.ClassificationRecord) *ClassificationRecordModel {
	return &ClassificationRecordModel{
		ID:            r.ID,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		RequestID:     r.RequestID,
		Regime:        r.Regime,
		CFOP:          r.CFOP,
		UFEmitter:     r.UFEmitter,
		UFDestination: r.UFDestination,
		CSTICMS:       r.CSTICMS,
		NCM:           r.NCM,
		EmissionYear:  r.EmissionYear,
		ClassTribCode: r.ClassTribCode,
		CST:           r.CST,
		CClassTrib:    r.CClassTrib,
		IBSRate:       r.IBSRate,
		CBSRate:       r.CBSRate,
		Confidence:    r.Confidence,
		Cached:        r.Cached,
		AlertCount:    r.AlertCount,
		PendencyCount: r.PendencyCount,
	}
}

// GormClassificationRecordRepository implements
// fiscal.ClassificationRecordRepository using GORM
type GormClassificationRecordRepository struct {
	db *gorm.DB
}

// NewGormClassificationRecordRepository creates a new repository
func NewGormClassificationRecordRepository(db *gorm.DB) *GormClassificationRecordRepository {
	return &GormClassificationRecordRepository{db: db}
}

// Save persists an audit row
func (r *GormClassificationRecordRepository) Save(ctx context.Context, record *fiscal.ClassificationRecord) error {
	return r.db.WithContext(ctx).Create(modelFromDomain(record)).Error
}

// FindAll returns audit rows matching the filter
func (r *GormClassificationRecordRepository) FindAll(ctx context.Context, filter shared.Filter) ([]fiscal.ClassificationRecord, error) {
	var models []ClassificationRecordModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&ClassificationRecordModel{}), filter)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]fiscal.ClassificationRecord, 0, len(models))
	for i := range models {
		records = append(records, models[i].ToDomain())
	}
	return records, nil
}

// Count returns the number of audit rows matching the filter
func (r *GormClassificationRecordRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&ClassificationRecordModel{})
	query = applyWhere(query, filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// allowed sort columns; anything else falls back to created_at
var sortableColumns = map[string]string{
	"created_at":    "created_at",
	"ncm":           "ncm",
	"emission_year": "emission_year",
	"confidence":    "confidence",
}

func (r *GormClassificationRecordRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = applyWhere(query, filter)

	orderBy, ok := sortableColumns[filter.OrderBy]
	if !ok {
		orderBy = "created_at"
	}
	dir := "desc"
	if filter.OrderDir == "asc" {
		dir = "asc"
	}
	query = query.Order(orderBy + " " + dir)

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	return query
}

func applyWhere(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if ncm, ok := filter.Filters["ncm"]; ok {
		query = query.Where("ncm = ?", ncm)
	}
	if year, ok := filter.Filters["emission_year"]; ok {
		query = query.Where("emission_year = ?", year)
	}
	if cached, ok := filter.Filters["cached"]; ok {
		query = query.Where("cached = ?", cached)
	}
	return query
}

// Ensure interface compliance
var _ fiscal.ClassificationRecordRepository = (*GormClassificationRecordRepository)(nil)
