package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"claimsight/internal/common/errors"
	"claimsight/internal/common/logger"
	"claimsight/internal/common/observability"
	"claimsight/internal/decision"
	"claimsight/internal/index"
	"claimsight/internal/models"
	"claimsight/internal/queryparser"
)

// QueryService runs the question-answering pipeline: parse, retrieve,
// decide.
type QueryService struct {
	parser    *queryparser.Parser
	index     index.Index
	evaluator *decision.Evaluator
	topK      int
	metrics   *observability.Observability
	tracing   *observability.Tracing
	logger    logger.Logger
}

type QueryServiceOptions struct {
	Parser    *queryparser.Parser
	Index     index.Index
	Evaluator *decision.Evaluator
	TopK      int
	Metrics   *observability.Observability
	Tracing   *observability.Tracing
	Logger    logger.Logger
}

func NewQueryService(opts QueryServiceOptions) *QueryService {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	return &QueryService{
		parser:    opts.Parser,
		index:     opts.Index,
		evaluator: opts.Evaluator,
		topK:      topK,
		metrics:   opts.Metrics,
		tracing:   opts.Tracing,
		logger:    opts.Logger.WithFields(map[string]interface{}{"component": "query-service"}),
	}
}

// Process answers one query request. Retrieval failures surface as errors;
// decision synthesis never does, its failures are carried inside the
// decision record.
func (s *QueryService) Process(ctx context.Context, req models.QueryRequest) (*models.ProcessingResponse, error) {
	start := time.Now()
	if s.tracing != nil {
		var span trace.Span
		ctx, span = s.tracing.StartSpan(ctx, "query.process")
		defer span.End()
	}

	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.NewEmptyQueryError()
	}

	parsed, err := s.parser.Parse(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	retrieved, err := s.index.Search(ctx, req.Query, s.topK, req.DocumentIDs)
	if err != nil {
		return nil, err
	}

	result := s.evaluator.Evaluate(ctx, parsed, retrieved)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordQueryProcessed(ctx, result.Decision)
		s.metrics.RecordQueryDuration(ctx, elapsed, result.Decision)
	}
	s.logger.Info("query processed", map[string]interface{}{
		"decision":  result.Decision,
		"retrieved": len(retrieved),
		"duration":  elapsed.String(),
	})

	return &models.ProcessingResponse{
		Query:              req.Query,
		ParsedQuery:        *parsed,
		RetrievedDocuments: retrieved,
		Decision:           result,
		ProcessingTime:     elapsed.Seconds(),
	}, nil
}
