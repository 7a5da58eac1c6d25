package classify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/cclastrib/backend/internal/domain/fiscal"
	"github.com/cclastrib/backend/internal/domain/shared"
	"github.com/cclastrib/backend/internal/infrastructure/logger"
)

// Service orchestrates classification: normalization, cache lookup,
// rule evaluation, document generation and the audit trail.
type Service struct {
	provider fiscal.Provider
	cache    shared.ResultCache
	records  fiscal.ClassificationRecordRepository
	cacheTTL time.Duration
	audit    bool
	log      *zap.Logger
}

// NewService creates the classification service. The repository may
// be nil when auditing is disabled.
func NewService(
	provider fiscal.Provider,
	cache shared.ResultCache,
	records fiscal.ClassificationRecordRepository,
	cacheTTL time.Duration,
	auditEnabled bool,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		provider: provider,
		cache:    cache,
		records:  records,
		cacheTTL: cacheTTL,
		audit:    auditEnabled && records != nil,
		log:      log.Named("classify"),
	}
}

// Classify answers one classification request. Identical operations
// within the cache TTL are served from the cache; the document block
// is rebuilt from the request either way, item value and references
// are not part of the cache key.
func (s *Service) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	op, err := req.toOperation()
	if err != nil {
		return nil, err
	}

	key := op.CacheKey()
	if c, ok := s.cachedClassification(ctx, key); ok {
		doc := fiscal.BuildDocument(*c, req.toDocumentInput(op))
		resp := newResponse(*c, doc, true)
		s.saveRecord(ctx, op, *c, true)
		return resp, nil
	}

	c := fiscal.Classify(s.provider.Current(), op)
	doc := fiscal.BuildDocument(c, req.toDocumentInput(op))
	resp := newResponse(c, doc, false)

	s.storeClassification(ctx, key, c)
	s.saveRecord(ctx, op, c, false)

	logger.L(ctx).Debug("operation classified",
		zap.String("ncm", fiscal.NormalizeNCM(op.NCM)),
		zap.String("cclastrib", c.ClassTrib.Code),
		zap.Float64("confianca", c.Confidence),
	)
	return resp, nil
}

// ClassifyBatch answers a batch sharing one document header.
func (s *Service) ClassifyBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	out := &BatchResponse{Itens: make([]ClassifyResponse, 0, len(req.Itens))}
	for _, item := range req.Itens {
		resp, err := s.Classify(ctx, req.itemRequest(item))
		if err != nil {
			return nil, err
		}
		out.Itens = append(out.Itens, *resp)
		out.Resumo.TotalDebito += resp.TotalDebito
		out.Resumo.TotalCredito += resp.TotalCredito
		if len(resp.Alertas) > 0 {
			out.Resumo.ComAlertas++
		}
		if len(resp.Pendencias) > 0 {
			out.Resumo.ComPendencias++
		}
	}
	out.Resumo.TotalItens = len(out.Itens)
	return out, nil
}

// Reload rebuilds the table snapshot and clears the result cache, so
// no answer derived from the old tables survives.
func (s *Service) Reload(ctx context.Context) (*TablesStatus, error) {
	snap, err := s.provider.Reload(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Clear(ctx); err != nil {
		logger.L(ctx).Warn("failed to clear result cache after reload", zap.Error(err))
	}
	return snapshotStatus(snap), nil
}

// Tables reports the current snapshot without reloading.
func (s *Service) Tables(ctx context.Context) *TablesStatus {
	return snapshotStatus(s.provider.Current())
}

// Audit lists persisted classification records.
func (s *Service) Audit(ctx context.Context, filter shared.Filter) (shared.Paginated[fiscal.ClassificationRecord], error) {
	var empty shared.Paginated[fiscal.ClassificationRecord]
	if s.records == nil {
		return empty, shared.NewDomainError("AUDIT_DISABLED", "trilha de auditoria desabilitada")
	}
	items, err := s.records.FindAll(ctx, filter)
	if err != nil {
		return empty, err
	}
	total, err := s.records.Count(ctx, filter)
	if err != nil {
		return empty, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

func snapshotStatus(t *fiscal.RuleTables) *TablesStatus {
	return &TablesStatus{
		Diretorio:   t.BaseDir,
		CarregadoEm: t.LoadedAt,
		Linhas:      t.Stats(),
	}
}

func (s *Service) cachedClassification(ctx context.Context, key string) (*fiscal.Classification, bool) {
	payload, found, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.L(ctx).Warn("result cache read failed", zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	var c fiscal.Classification
	if err := json.Unmarshal(payload, &c); err != nil {
		logger.L(ctx).Warn("discarding unreadable cached result", zap.Error(err))
		return nil, false
	}
	return &c, true
}

func (s *Service) storeClassification(ctx context.Context, key string, c fiscal.Classification) {
	payload, err := json.Marshal(c)
	if err != nil {
		logger.L(ctx).Warn("failed to encode result for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
		logger.L(ctx).Warn("result cache write failed", zap.Error(err))
	}
}

func (s *Service) saveRecord(ctx context.Context, op fiscal.Operation, c fiscal.Classification, cached bool) {
	if !s.audit {
		return
	}
	record := fiscal.NewClassificationRecord(logger.GetRequestID(ctx), op, c, cached)
	if err := s.records.Save(ctx, record); err != nil {
		logger.L(ctx).Warn("failed to persist audit record", zap.Error(err))
	}
}
