package fiscal

import (
	"time"

	"github.com/shopspring/decimal"
)

// NF-e enumeration values used by the generated groups.
const (
	DebitIntegral = "tdIntegral"
	DebitNone     = "tdNenhum"
	CreditNone    = "tcNenhum"

	GovSphereStates = "tcgEstados"
	GovOperSupply   = "togFornecimento"

	MovableUsedNone = "tieNenhum"
	MovableUsedYes  = "tieSim"
	DonationYes     = "tieSim"
	DonationNo      = "tieNao"
)

// CompraGovGroup is the NF-e gCompraGov group for operations destined
// to the public administration.
type CompraGovGroup struct {
	TpEnteGov string  `json:"tpEnteGov"`
	PRedutor  float64 `json:"pRedutor"`
	TpOperGov string  `json:"tpOperGov"`
}

// PagAntecipadoRef references an advance-payment NF-e by access key.
type PagAntecipadoRef struct {
	RefNFe string `json:"refNFe"`
}

// IdeGroup carries the document identification tags affected by the
// IBS/CBS reform.
type IdeGroup struct {
	DPrevEntrega   string             `json:"dPrevEntrega,omitempty"`
	CMunFGIBS      *int               `json:"cMunFGIBS,omitempty"`
	TpNFDebito     string             `json:"tpNFDebito"`
	TpNFCredito    string             `json:"tpNFCredito"`
	GCompraGov     *CompraGovGroup    `json:"gCompraGov,omitempty"`
	GPagAntecipado []PagAntecipadoRef `json:"gPagAntecipado,omitempty"`
}

// DFeRef references the originating DF-e of a returned or used item.
type DFeRef struct {
	ChaveAcesso string `json:"chaveAcesso"`
	NItem       *int   `json:"nItem,omitempty"`
}

// ProductGroup carries the per-item product tags.
type ProductGroup struct {
	IndBemMovelUsado string   `json:"indBemMovelUsado"`
	VItem            *float64 `json:"vItem,omitempty"`
	DFeReferenciado  *DFeRef  `json:"DFeReferenciado,omitempty"`
}

// IBSUFGroup is the state share of the IBS.
type IBSUFGroup struct {
	PIBSUF float64 `json:"pIBSUF"`
	VIBSUF float64 `json:"vIBSUF"`
}

// IBSMunGroup is the municipal share of the IBS. The split is not
// regulated yet, so it stays at zero.
type IBSMunGroup struct {
	PIBSMun float64 `json:"pIBSMun"`
	VIBSMun float64 `json:"vIBSMun"`
}

// CBSGroup is the federal CBS portion.
type CBSGroup struct {
	PCBS float64 `json:"pCBS"`
	VCBS float64 `json:"vCBS"`
}

// ISGroup is the selective tax portion.
type ISGroup struct {
	PIS float64 `json:"pIS"`
	VIS float64 `json:"vIS"`
}

// IBSCBSGroup is the per-item gIBSCBS group.
type IBSCBSGroup struct {
	VBC     float64     `json:"vBC"`
	GIBSUF  IBSUFGroup  `json:"gIBSUF"`
	GIBSMun IBSMunGroup `json:"gIBSMun"`
	VIBS    float64     `json:"vIBS"`
	GCBS    CBSGroup    `json:"gCBS"`
}

// TaxGroup is the per-item imposto group.
type TaxGroup struct {
	CST        string       `json:"CST"`
	CClassTrib string       `json:"cClassTrib"`
	IndDoacao  string       `json:"indDoacao"`
	GIBSCBS    *IBSCBSGroup `json:"gIBSCBS,omitempty"`
	GIS        *ISGroup     `json:"gIS,omitempty"`
}

// TotalsGroup is the document totals group.
type TotalsGroup struct {
	VBCIBSCBS    float64        `json:"vBCIBSCBS"`
	GIBS         map[string]any `json:"gIBS"`
	GCBS         map[string]any `json:"gCBS"`
	GIS          map[string]any `json:"gIS,omitempty"`
	GMono        map[string]any `json:"gMono"`
	GEstornoCred map[string]any `json:"gEstornoCred"`
	VNFTot       float64        `json:"vNFTot"`
}

// Document is the set of NF-e groups the classification produces for
// one item.
type Document struct {
	Ide     IdeGroup     `json:"ide"`
	Produto ProductGroup `json:"produto"`
	Imposto TaxGroup     `json:"imposto"`
	Totais  TotalsGroup  `json:"totais"`
}

// DocumentInput carries everything BuildDocument needs beyond the
// classification itself.
type DocumentInput struct {
	EmissionDate       time.Time
	ItemValue          *float64
	MunicipalityFGIBS  *int
	GovernmentPurchase bool
	Donation           bool
	UsedMovable        bool
	PrepaidKeys        []string
	ReferencedKey      string
	ReferencedItem     *int
}

// DocumentResult pairs the generated groups with the derived debit
// and credit totals.
type DocumentResult struct {
	Document    Document
	TotalDebit  float64
	TotalCredit float64
}

// BuildDocument renders the NF-e groups for a classified item.
// Amounts round to two decimal places; percentage tags carry the rate
// multiplied by one hundred.
func BuildDocument(c Classification, in DocumentInput) DocumentResult {
	doc := Document{}

	doc.Ide.DPrevEntrega = in.EmissionDate.AddDate(0, 0, 10).Format("2006-01-02")
	doc.Ide.CMunFGIBS = in.MunicipalityFGIBS
	doc.Ide.TpNFCredito = CreditNone
	if in.GovernmentPurchase {
		doc.Ide.GCompraGov = &CompraGovGroup{
			TpEnteGov: GovSphereStates,
			PRedutor:  5,
			TpOperGov: GovOperSupply,
		}
	}
	for _, key := range in.PrepaidKeys {
		doc.Ide.GPagAntecipado = append(doc.Ide.GPagAntecipado, PagAntecipadoRef{RefNFe: key})
	}

	doc.Produto.IndBemMovelUsado = MovableUsedNone
	if in.UsedMovable {
		doc.Produto.IndBemMovelUsado = MovableUsedYes
	}
	doc.Produto.VItem = in.ItemValue
	if in.ReferencedKey != "" {
		doc.Produto.DFeReferenciado = &DFeRef{ChaveAcesso: in.ReferencedKey, NItem: in.ReferencedItem}
	}

	doc.Imposto.CST = c.CST
	doc.Imposto.CClassTrib = c.CClassTrib
	doc.Imposto.IndDoacao = DonationNo
	if in.Donation {
		doc.Imposto.IndDoacao = DonationYes
	}

	var vBC, vIBS, vCBS, vIS decimal.Decimal
	if in.ItemValue != nil {
		vBC = decimal.NewFromFloat(*in.ItemValue)
		vIBS = vBC.Mul(c.IBSRate)
		vCBS = vBC.Mul(c.CBSRate)
		doc.Imposto.GIBSCBS = &IBSCBSGroup{
			VBC: money(vBC),
			GIBSUF: IBSUFGroup{
				PIBSUF: pct(c.IBSRate),
				VIBSUF: money(vIBS),
			},
			GIBSMun: IBSMunGroup{},
			VIBS:    money(vIBS),
			GCBS: CBSGroup{
				PCBS: pct(c.CBSRate),
				VCBS: money(vCBS),
			},
		}
		if c.SelectiveTax {
			vIS = vBC.Mul(c.SelectiveTaxRate)
			doc.Imposto.GIS = &ISGroup{
				PIS: pct(c.SelectiveTaxRate),
				VIS: money(vIS),
			}
		}
	}

	// The ZFM benefit marks the note as debit-free even while CBS
	// still produces a value.
	debit := money(vIBS.Add(vCBS).Add(vIS))
	doc.Ide.TpNFDebito = DebitNone
	if debit > 0 && !c.ZFMBenefitIBSZero {
		doc.Ide.TpNFDebito = DebitIntegral
	}

	doc.Totais = TotalsGroup{
		VBCIBSCBS:    money(vBC),
		GIBS:         map[string]any{"vIBS": money(vIBS)},
		GCBS:         map[string]any{"vCBS": money(vCBS)},
		GMono:        map[string]any{},
		GEstornoCred: map[string]any{},
		VNFTot:       money(vBC.Add(vIBS).Add(vCBS).Add(vIS)),
	}
	if c.SelectiveTax {
		doc.Totais.GIS = map[string]any{"vIS": money(vIS)}
	}

	return DocumentResult{
		Document:    doc,
		TotalDebit:  debit,
		TotalCredit: 0,
	}
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func pct(rate decimal.Decimal) float64 {
	f, _ := rate.Mul(decimal.NewFromInt(100)).Round(4).Float64()
	return f
}
