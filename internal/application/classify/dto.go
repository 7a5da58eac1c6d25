package classify

import (
	"strings"
	"time"

	"github.com/cclastrib/backend/internal/domain/fiscal"
)

// ClassifyRequest is the wire format of one classification request.
// Field names and the S/N convention are the contract the API's
// existing consumers send; they must not drift.
type ClassifyRequest struct {
	AnoEmissao           int    `json:"ano_emissao" binding:"required,min=2026,max=2100"`
	DataEmissao          string `json:"data_emissao,omitempty"`
	RegimeFiscalEmitente string `json:"regime_fiscal_emitente" binding:"required"`
	CFOP                 string `json:"cfop" binding:"required"`
	UFEmitente           string `json:"uf_emitente,omitempty"`
	UFDestinatario       string `json:"uf_destinatario,omitempty"`
	CSTICMS              string `json:"cst_icms,omitempty"`
	NCM                  string `json:"ncm" binding:"required"`

	ValorItem         *float64 `json:"valor_item,omitempty"`
	CodMunicipioFGIBS *int     `json:"cod_municipio_fg_ibs,omitempty"`

	CompraGoverno bool   `json:"compra_governo,omitempty"`
	IndDoacao     bool   `json:"ind_doacao,omitempty"`
	BemMovelUsado string `json:"bem_movel_usado,omitempty" binding:"omitempty,oneof=S N s n"`

	ProduzidoZFM                 string `json:"produzido_zfm,omitempty" binding:"omitempty,oneof=S N s n"`
	EmitenteZFM                  string `json:"emitente_zona_franca_manaus,omitempty" binding:"omitempty,oneof=S N s n"`
	DestinatarioZFM              string `json:"destinatario_zona_franca_manaus,omitempty" binding:"omitempty,oneof=S N s n"`
	CadastroSuframaEmitente      string `json:"cadastro_suframa_emitente,omitempty"`
	CadastroSuframaEmitenteAtivo string `json:"cadastro_suframa_emitente_ativo,omitempty" binding:"omitempty,oneof=S N s n"`
	CadastroSuframaDestinatario  string `json:"cadastro_suframa_destinatario,omitempty"`
	CadastroSuframaDestinoAtivo  string `json:"cadastro_suframa_destinatario_ativo,omitempty" binding:"omitempty,oneof=S N s n"`

	RefsPagAntecipado   []string `json:"refs_pag_antecipado,omitempty"`
	DFeReferenciadoChav string   `json:"dfe_referenciado_chave,omitempty"`
	DFeReferenciadoItem *int     `json:"dfe_referenciado_nitem,omitempty"`
}

// snTrue reads an S/N cell as a plain yes/no, absent meaning no.
func snTrue(v string) bool {
	b := fiscal.ParseSN(v)
	return b != nil && *b
}

// emissionDate resolves the full emission date: data_emissao when
// present, otherwise January 1st of ano_emissao.
func (r ClassifyRequest) emissionDate() time.Time {
	if r.DataEmissao != "" {
		if d, err := time.Parse("2006-01-02", r.DataEmissao); err == nil {
			return d
		}
	}
	return time.Date(r.AnoEmissao, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// toOperation maps the request onto a normalized domain operation.
func (r ClassifyRequest) toOperation() (fiscal.Operation, error) {
	op, err := fiscal.NewOperation(
		r.RegimeFiscalEmitente,
		r.CFOP,
		r.UFEmitente,
		r.UFDestinatario,
		r.CSTICMS,
		r.NCM,
		r.emissionDate(),
	)
	if err != nil {
		return fiscal.Operation{}, err
	}
	op.ItemValue = r.ValorItem
	op.GovernmentPurchase = r.CompraGoverno
	op.Donation = r.IndDoacao
	op.ProducedInZFM = snTrue(r.ProduzidoZFM)
	op.EmitterInZFM = snTrue(r.EmitenteZFM)
	op.DestinationInZFM = snTrue(r.DestinatarioZFM)
	op.EmitterSUFRAMA = strings.TrimSpace(r.CadastroSuframaEmitente)
	op.EmitterSUFRAMAActive = fiscal.ParseSN(r.CadastroSuframaEmitenteAtivo)
	op.DestinationSUFRAMA = strings.TrimSpace(r.CadastroSuframaDestinatario)
	op.DestinationSUFRAMAActive = fiscal.ParseSN(r.CadastroSuframaDestinoAtivo)
	return op, nil
}

func (r ClassifyRequest) toDocumentInput(op fiscal.Operation) fiscal.DocumentInput {
	return fiscal.DocumentInput{
		EmissionDate:       op.EmissionDate,
		ItemValue:          r.ValorItem,
		MunicipalityFGIBS:  r.CodMunicipioFGIBS,
		GovernmentPurchase: r.CompraGoverno,
		Donation:           r.IndDoacao,
		UsedMovable:        snTrue(r.BemMovelUsado),
		PrepaidKeys:        r.RefsPagAntecipado,
		ReferencedKey:      r.DFeReferenciadoChav,
		ReferencedItem:     r.DFeReferenciadoItem,
	}
}

// BatchItem carries the per-item fields of a batch request. Header
// fields come from the surrounding BatchRequest.
type BatchItem struct {
	CFOP         string   `json:"cfop,omitempty"`
	CSTICMS      string   `json:"cst_icms,omitempty"`
	NCM          string   `json:"ncm" binding:"required"`
	ValorItem    *float64 `json:"valor_item,omitempty"`
	ProduzidoZFM string   `json:"produzido_zfm,omitempty" binding:"omitempty,oneof=S N s n"`
}

// BatchRequest classifies several items sharing one document header.
type BatchRequest struct {
	AnoEmissao           int    `json:"ano_emissao" binding:"required,min=2026,max=2100"`
	DataEmissao          string `json:"data_emissao,omitempty"`
	RegimeFiscalEmitente string `json:"regime_fiscal_emitente" binding:"required"`
	CFOP                 string `json:"cfop,omitempty"`
	UFEmitente           string `json:"uf_emitente,omitempty"`
	UFDestinatario       string `json:"uf_destinatario,omitempty"`
	CSTICMS              string `json:"cst_icms,omitempty"`

	CompraGoverno                bool   `json:"compra_governo,omitempty"`
	EmitenteZFM                  string `json:"emitente_zona_franca_manaus,omitempty" binding:"omitempty,oneof=S N s n"`
	CadastroSuframaEmitente      string `json:"cadastro_suframa_emitente,omitempty"`
	CadastroSuframaEmitenteAtivo string `json:"cadastro_suframa_emitente_ativo,omitempty" binding:"omitempty,oneof=S N s n"`

	Itens []BatchItem `json:"itens" binding:"required,min=1,dive"`
}

// itemRequest expands one batch item into a full request.
func (r BatchRequest) itemRequest(item BatchItem) ClassifyRequest {
	req := ClassifyRequest{
		AnoEmissao:                   r.AnoEmissao,
		DataEmissao:                  r.DataEmissao,
		RegimeFiscalEmitente:         r.RegimeFiscalEmitente,
		CFOP:                         r.CFOP,
		UFEmitente:                   r.UFEmitente,
		UFDestinatario:               r.UFDestinatario,
		CSTICMS:                      r.CSTICMS,
		NCM:                          item.NCM,
		ValorItem:                    item.ValorItem,
		CompraGoverno:                r.CompraGoverno,
		EmitenteZFM:                  r.EmitenteZFM,
		CadastroSuframaEmitente:      r.CadastroSuframaEmitente,
		CadastroSuframaEmitenteAtivo: r.CadastroSuframaEmitenteAtivo,
	}
	if item.CFOP != "" {
		req.CFOP = item.CFOP
	}
	if item.CSTICMS != "" {
		req.CSTICMS = item.CSTICMS
	}
	if item.ProduzidoZFM != "" {
		req.ProduzidoZFM = item.ProduzidoZFM
	}
	return req
}

// FundamentoDTO is one grounding entry on the response.
type FundamentoDTO struct {
	Regra  string `json:"regra"`
	Motivo string `json:"motivo"`
	Fonte  string `json:"fonte,omitempty"`
}

// ClassTribDTO is the operational cClasTrib on the response.
type ClassTribDTO struct {
	Codigo    string `json:"codigo"`
	Descricao string `json:"descricao,omitempty"`
}

// ClassifyResponse is the wire format of one classification answer.
type ClassifyResponse struct {
	CClasTrib  ClassTribDTO `json:"cclastrib"`
	CST        string       `json:"cst"`
	CClassTrib string       `json:"cclass_trib"`

	AliquotaIBS float64 `json:"aliquota_ibs"`
	AliquotaCBS float64 `json:"aliquota_cbs"`

	CategoriaNCM        string `json:"categoria_ncm,omitempty"`
	ImpostoSeletivo     bool   `json:"imposto_seletivo"`
	BeneficioZFMIBSZero bool   `json:"beneficio_zfm_ibs_zero"`
	NCMBeneficiadoZFM   bool   `json:"ncm_beneficiado_zfm"`

	Confianca   float64         `json:"confianca"`
	Alertas     []string        `json:"alertas"`
	Pendencias  []string        `json:"pendencias"`
	Fundamentos []FundamentoDTO `json:"fundamentos"`

	Documento    fiscal.Document `json:"documento"`
	TotalDebito  float64         `json:"total_debito"`
	TotalCredito float64         `json:"total_credito"`

	Cache bool `json:"cache"`
}

// BatchResponse aggregates the per-item answers.
type BatchResponse struct {
	Itens  []ClassifyResponse `json:"itens"`
	Resumo BatchSummary       `json:"resumo"`
}

// BatchSummary totals a batch.
type BatchSummary struct {
	TotalItens    int     `json:"total_itens"`
	TotalDebito   float64 `json:"total_debito"`
	TotalCredito  float64 `json:"total_credito"`
	ComAlertas    int     `json:"com_alertas"`
	ComPendencias int     `json:"com_pendencias"`
}

// TablesStatus reports the current snapshot for the admin surface.
type TablesStatus struct {
	Diretorio   string         `json:"diretorio"`
	CarregadoEm time.Time      `json:"carregado_em"`
	Linhas      map[string]int `json:"linhas"`
}

func newResponse(c fiscal.Classification, doc fiscal.DocumentResult, cached bool) *ClassifyResponse {
	rateIBS, _ := c.IBSRate.Float64()
	rateCBS, _ := c.CBSRate.Float64()

	fundamentos := make([]FundamentoDTO, 0, len(c.Groundings))
	for _, g := range c.Groundings {
		fundamentos = append(fundamentos, FundamentoDTO{
			Regra:  g.Rule,
			Motivo: g.Detail,
			Fonte:  g.Source,
		})
	}

	return &ClassifyResponse{
		CClasTrib: ClassTribDTO{
			Codigo:    c.ClassTrib.Code,
			Descricao: c.ClassTrib.Description,
		},
		CST:                 c.CST,
		CClassTrib:          c.CClassTrib,
		AliquotaIBS:         rateIBS,
		AliquotaCBS:         rateCBS,
		CategoriaNCM:        c.Category,
		ImpostoSeletivo:     c.SelectiveTax,
		BeneficioZFMIBSZero: c.ZFMBenefitIBSZero,
		NCMBeneficiadoZFM:   c.NCMBenefitedZFM,
		Confianca:           c.Confidence,
		Alertas:             emptyIfNil(c.Alerts),
		Pendencias:          emptyIfNil(c.Pendencies),
		Fundamentos:         fundamentos,
		Documento:           doc.Document,
		TotalDebito:         doc.TotalDebit,
		TotalCredito:        doc.TotalCredit,
		Cache:               cached,
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
