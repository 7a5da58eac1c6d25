package fiscal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Grounding is one legal or table-derived justification attached to a
// classification.
type Grounding struct {
	Rule   string
	Detail string
	Source string
}

// ClassTribResult is the operational cClasTrib picked for the
// operation.
type ClassTribResult struct {
	Code        string
	Description string
}

// Classification is the full outcome of classifying one operation.
type Classification struct {
	Category  string
	NCMFound  bool
	Exception bool

	ClassTrib        ClassTribResult
	ClassTribMatched bool

	CST        string
	CClassTrib string

	IBSRate decimal.Decimal
	CBSRate decimal.Decimal

	SelectiveTax     bool
	SelectiveTaxRate decimal.Decimal

	ZFMBenefitIBSZero bool
	NCMBenefitedZFM   bool

	Confidence float64
	Alerts     []string
	Pendencies []string
	Groundings []Grounding
}

// Classify runs the full rule chain against a snapshot: NCM category,
// cClasTrib selection, CST mapping, transition rates, exception
// overrides, ZFM benefit and the selective tax. It never returns an
// error; gaps in the tables surface as alerts and pendencies on the
// result.
func Classify(t *RuleTables, op Operation) Classification {
	c := Classification{
		IBSRate: decimal.Zero,
		CBSRate: decimal.Zero,
	}
	year := op.EmissionDate.Year()
	ncmDigits := NormalizeNCM(op.NCM)

	entry, fromException := t.FindNCM(ncmDigits, op.EmissionDate)
	if entry != nil {
		c.NCMFound = true
		c.Exception = fromException
		c.Category = entry.Category
		c.NCMBenefitedZFM = entry.ZFMBenefit
		source := "ncm_master.csv"
		if fromException {
			source = "ncm_excecoes.csv"
		}
		c.ground("CATEGORIA NCM", fmt.Sprintf("NCM %s classificado como %s", ncmDigits, entry.Category), source)
	} else {
		c.pend(fmt.Sprintf("NCM %s não encontrado nas tabelas vigentes", ncmDigits))
		c.alert("Tributação aplicada pela regra geral (fallback)")
	}

	rule, matched := t.PickClassTrib(op)
	c.ClassTribMatched = matched
	c.ClassTrib = ClassTribResult{Code: rule.Code, Description: rule.Description}
	if matched {
		c.ground("CCLASTRIB", fmt.Sprintf("Código %s selecionado pela combinação regime/CFOP/UF/CST-ICMS", rule.Code), sourceOr(rule.LegalBasis, "cclastrib.csv"))
	} else {
		c.alert("Nenhuma regra cClasTrib específica para a operação; aplicada a regra geral")
	}

	c.CST, c.CClassTrib = t.MapCST(rule.Code)
	c.ground("CST/cClassTrib", fmt.Sprintf("CST %s, cClassTrib %s para o código %s", c.CST, c.CClassTrib, rule.Code), "cst_ibs_cbs_map.csv")

	c.ground("ANO DE TRANSIÇÃO", fmt.Sprintf("Alíquotas do ano %d da transição LC 214/2025", year), "transicao_ibs.csv, transicao_cbs.csv")
	if r := TransitionRate(t.IBSTransition, year); r != nil {
		c.IBSRate = *r
	} else {
		c.pend(fmt.Sprintf("Percentual de transição IBS não definido para o ano %d", year))
	}
	if r := TransitionRate(t.CBSTransition, year); r != nil {
		c.CBSRate = *r
	} else {
		c.pend(fmt.Sprintf("Percentual de transição CBS não definido para o ano %d", year))
	}

	if fromException && entry.RateOverride != nil {
		c.IBSRate = *entry.RateOverride
		c.CBSRate = *entry.RateOverride
		c.ground("EXCEÇÃO NCM", fmt.Sprintf("Alíquota sobrescrita para %s", entry.RateOverride.String()), sourceOr(entry.LegalBasis, "ncm_excecoes.csv"))
	}
	if fromException && entry.ClassTribOverride != "" {
		c.ClassTrib.Code = NormalizeCode(entry.ClassTribOverride)
		c.CST, c.CClassTrib = t.MapCST(c.ClassTrib.Code)
		c.ground("EXCEÇÃO NCM", fmt.Sprintf("cClasTrib sobrescrito para %s", c.ClassTrib.Code), sourceOr(entry.LegalBasis, "ncm_excecoes.csv"))
	}

	c.applyZFM(op)

	if SelectiveTaxApplies(year, c.Category) {
		c.SelectiveTax = true
		c.SelectiveTaxRate = decimal.NewFromFloat(SelectiveTaxRate)
		c.ground("IMPOSTO SELETIVO", fmt.Sprintf("Categoria %s sujeita ao IS a partir de %d", c.Category, SelectiveTaxStartYear), "LC 214/2025, art. 409")
	}

	if op.GovernmentPurchase {
		c.ground("COMPRA GOVERNAMENTAL", "Operação destinada à administração pública; grupo gCompraGov no documento", "LC 214/2025, art. 473")
	}

	c.Confidence = 0.6
	if c.NCMFound {
		c.Confidence += 0.2
	}
	if c.ClassTribMatched {
		c.Confidence += 0.2
	}
	if c.Confidence > 1.0 {
		c.Confidence = 1.0
	}
	return c
}

// applyZFM zeroes IBS for goods produced in the Zona Franca de Manaus
// when the emitter is established there with an active SUFRAMA
// registration. Anything short of that leaves the rate untouched and
// records why.
func (c *Classification) applyZFM(op Operation) {
	if op.DestinationInZFM && op.DestinationSUFRAMA == "" {
		c.alert("Destinatário na ZFM sem inscrição SUFRAMA informada")
	}
	if !op.ProducedInZFM || !op.EmitterInZFM {
		return
	}
	switch {
	case op.EmitterSUFRAMA == "":
		c.alert("Emitente na ZFM sem inscrição SUFRAMA informada; benefício não aplicado")
	case op.EmitterSUFRAMAActive == nil:
		c.pend("Situação da inscrição SUFRAMA do emitente não informada")
	case !*op.EmitterSUFRAMAActive:
		c.pend("Inscrição SUFRAMA do emitente inativa; benefício não aplicado")
	default:
		c.ZFMBenefitIBSZero = true
		c.IBSRate = decimal.Zero
		c.ground("BENEFÍCIO ZFM", "Produto industrializado na ZFM com emitente habilitado na SUFRAMA; IBS reduzido a zero", "LC 214/2025, art. 443")
	}
}

func (c *Classification) ground(rule, detail, source string) {
	c.Groundings = append(c.Groundings, Grounding{Rule: rule, Detail: detail, Source: source})
}

func (c *Classification) alert(msg string) {
	c.Alerts = append(c.Alerts, msg)
}

func (c *Classification) pend(msg string) {
	c.Pendencies = append(c.Pendencies, msg)
}

func sourceOr(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
