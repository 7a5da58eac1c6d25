package fiscal

import (
	"strings"
	"time"

	"github.com/cclastrib/backend/internal/domain/shared"
)

// Codes used when the tables have no answer.
const (
	GeneralRuleCode   = "REGRA-GERAL"
	DefaultCST        = "000"
	DefaultCClassTrib = "000001"
)

// Selective-tax (IS) parameters from LC 214/2025: the tax starts in
// 2027 and applies to the harmful-goods categories.
const (
	SelectiveTaxStartYear = 2027
	SelectiveTaxRate      = 0.05
)

var selectiveCategories = map[string]bool{
	"NOCIVO":   true,
	"SELETIVO": true,
	"BEBIDAS":  true,
	"CIGARROS": true,
}

// SelectiveTaxApplies reports whether the IS block belongs on a
// document for the given emission year and NCM category.
func SelectiveTaxApplies(year int, category string) bool {
	return year >= SelectiveTaxStartYear && selectiveCategories[NormalizeCode(category)]
}

// Operation is one normalized fiscal operation to classify. Build it
// with NewOperation so every code field is comparable against the
// tables.
type Operation struct {
	Regime        string
	CFOP          string
	UFEmitter     string
	UFDestination string
	CSTICMS       string
	NCM           string
	EmissionDate  time.Time

	ItemValue *float64

	GovernmentPurchase bool
	Donation           bool

	ProducedInZFM    bool
	EmitterInZFM     bool
	DestinationInZFM bool

	EmitterSUFRAMA           string
	EmitterSUFRAMAActive     *bool
	DestinationSUFRAMA       string
	DestinationSUFRAMAActive *bool
}

// NewOperation normalizes and validates the raw operation fields.
// Regime and CFOP are required; the rest default to wildcards the
// rule table can still match.
func NewOperation(regime, cfop, ufEmitter, ufDestination, cstICMS, ncm string, emission time.Time) (Operation, error) {
	regime = NormalizeCode(regime)
	cfop = NormalizeCode(cfop)
	if regime == "" {
		return Operation{}, shared.NewDomainError("INVALID_OPERATION", "regime fiscal do emitente é obrigatório")
	}
	if cfop == "" {
		return Operation{}, shared.NewDomainError("INVALID_OPERATION", "CFOP é obrigatório")
	}
	if emission.IsZero() {
		emission = time.Now().UTC()
	}
	return Operation{
		Regime:        regime,
		CFOP:          cfop,
		UFEmitter:     NormalizeCode(ufEmitter),
		UFDestination: NormalizeCode(ufDestination),
		CSTICMS:       NormalizeCode(cstICMS),
		NCM:           strings.TrimSpace(ncm),
		EmissionDate:  emission,
	}, nil
}

// CacheKey builds the deterministic lookup key for the result cache.
// Every field the engine reads participates: ZFM/SUFRAMA state on both
// parties changes the classification, and validity windows make the
// full emission date significant, not just the year.
func (op Operation) CacheKey() string {
	parts := []string{
		op.Regime,
		op.CFOP,
		op.UFEmitter,
		op.UFDestination,
		op.CSTICMS,
		NormalizeNCM(op.NCM),
		op.EmissionDate.Format("2006-01-02"),
		flag(op.GovernmentPurchase),
		flag(op.Donation),
		flag(op.ProducedInZFM),
		flag(op.EmitterInZFM),
		flag(op.DestinationInZFM),
		flag(op.EmitterSUFRAMA != ""),
		optFlag(op.EmitterSUFRAMAActive),
		flag(op.DestinationSUFRAMA != ""),
		optFlag(op.DestinationSUFRAMAActive),
	}
	return strings.ToUpper(strings.Join(parts, "|"))
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func optFlag(b *bool) string {
	if b == nil {
		return "-"
	}
	return flag(*b)
}
