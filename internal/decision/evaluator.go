// Package decision synthesizes a coverage decision from a parsed query and
// the passages retrieved for it. A decision record is always owed to the
// caller: every failure path yields a fallback record instead of an error.
package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"claimsight/internal/common/logger"
	"claimsight/internal/llm"
	"claimsight/internal/models"
)

const systemPrompt = `You are an expert document analyst specializing in policy interpretation, contract analysis, and decision making based on document content.

Your role is to:
1. Analyze queries against provided document sections
2. Make accurate decisions based on document content
3. Provide clear justifications with specific references
4. Identify when information is insufficient for a decision
5. Maintain consistency in decision-making logic

Key principles:
- Be precise and factual
- Reference specific document sections
- Explain your reasoning clearly
- Acknowledge limitations and uncertainties
- Before deciding, think through the coverage criteria step by step
- Every decision must be backed by a specific clause
- If the document does not explicitly cover the specific procedure or condition, state "insufficient_information" or "rejected" (if excluded), do not guess
- Check specifically for exclusions related to the query

Always respond with valid JSON in the specified format.`

const decisionSchema = `{
	"type": "object",
	"properties": {
		"decision": {
			"type": "string",
			"enum": ["approved", "rejected", "pending", "insufficient_information"]
		},
		"payment_mode": {
			"type": "string",
			"enum": ["cashless", "reimbursement", "unknown"]
		},
		"amount": {"type": ["number", "null"]},
		"justification": {"type": "string"},
		"source_clauses": {"type": "array", "items": {"type": "string"}},
		"confidence_score": {"type": "number", "minimum": 0, "maximum": 1},
		"metadata": {"type": "object"}
	}
}`

// Evaluator renders coverage decisions through a generation model.
type Evaluator struct {
	generator llm.Generator
	schema    *gojsonschema.Schema
	logger    logger.Logger
}

func NewEvaluator(generator llm.Generator, log logger.Logger) (*Evaluator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(decisionSchema))
	if err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}

	return &Evaluator{
		generator: generator,
		schema:    schema,
		logger:    log.WithFields(map[string]interface{}{"component": "decision-evaluator"}),
	}, nil
}

// Evaluate produces the decision record for a query. With no retrieved
// passages it short-circuits to insufficient_information without a model
// call; any model or parse failure is reported through an error record.
func (e *Evaluator) Evaluate(ctx context.Context, parsed *models.ParsedQuery, retrieved []models.RetrievalResult) models.DecisionResult {
	if len(retrieved) == 0 {
		return models.DecisionResult{
			Decision:        models.DecisionInsufficientInfo,
			PaymentMode:     models.PaymentModeUnknown,
			Justification:   "No relevant documents found to make a decision",
			SourceClauses:   []string{},
			ConfidenceScore: 0.0,
		}
	}

	prompt := buildDecisionPrompt(parsed, buildContext(retrieved))

	response, err := e.generator.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		e.logger.Error("decision generation failed", map[string]interface{}{"error": err.Error()})
		return errorResult(fmt.Sprintf("Error in decision evaluation: %v", err))
	}

	result, err := e.parseDecision(response)
	if err != nil {
		e.logger.Error("decision response rejected", map[string]interface{}{"error": err.Error()})
		return errorResult(fmt.Sprintf("Error in decision evaluation: %v", err))
	}
	return result
}

// buildContext enumerates the retrieved passages with their provenance.
func buildContext(retrieved []models.RetrievalResult) string {
	var b strings.Builder
	b.WriteString("RELEVANT DOCUMENT SECTIONS:\n\n")

	for i, doc := range retrieved {
		fmt.Fprintf(&b, "Section %d (Document: %s, Similarity: %.3f):\n", i+1, doc.DocumentID, doc.SimilarityScore)
		b.WriteString(doc.Content)
		b.WriteString("\n")
		metadataJSON, _ := json.Marshal(doc.Metadata)
		fmt.Fprintf(&b, "Metadata: %s\n\n", metadataJSON)
	}
	return b.String()
}

func buildDecisionPrompt(parsed *models.ParsedQuery, context string) string {
	structuredJSON, _ := json.MarshalIndent(parsed.StructuredData, "", "  ")

	return fmt.Sprintf(`QUERY ANALYSIS:
Original Query: %s
Structured Data: %s

%s
Based on the query and the relevant document sections above, make a decision and provide your response in the following JSON format:

{
    "decision": "approved|rejected|pending|insufficient_information",
    "payment_mode": "cashless|reimbursement|unknown",
    "amount": null or numeric value if applicable (calculate based on coverage limits, deductibles, and co-pay),
    "justification": "Clear explanation of the decision. Explicitly state why it is Cashless or Reimbursement (e.g., 'Hospital is in-network'). Detail the amount calculation.",
    "source_clauses": ["list", "of", "specific", "clause", "identifiers", "or", "section", "references"],
    "confidence_score": 0.0 to 1.0,
    "metadata": {
        "reasoning_steps": ["step1", "step2", "step3"],
        "key_factors": ["factor1", "factor2"],
        "potential_issues": ["issue1", "issue2"] or null
    }
}

Guidelines:
1. Step-by-step analysis:
   a. Identify the specific medical procedure or query intent.
   b. Scan retrieved sections for keywords (inclusions, exclusions, waiting periods).
   c. Check if the provider/location affects coverage (Network vs Non-network).
   d. Calculate payable amount only if coverage is confirmed.

2. Decision logic:
   - Approved: explicit positive evidence found.
   - Rejected: explicit exclusion found OR criteria not met.
   - Insufficient information: key details missing (e.g., policy type, waiting period status) and no default rule applies.

3. Payment mode: "cashless" ONLY if the hospital is explicitly listed as Network/PPN. Default to "reimbursement" if unsure or non-network.

4. Justification: must cite the exact section/clause used.`, parsed.OriginalQuery, structuredJSON, context)
}

// parseDecision extracts the JSON object span from the model response,
// validates it, and applies field defaults.
func (e *Evaluator) parseDecision(response string) (models.DecisionResult, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end <= start {
		return models.DecisionResult{}, fmt.Errorf("no JSON object in model response")
	}
	payload := response[start : end+1]

	validation, err := e.schema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return models.DecisionResult{}, fmt.Errorf("decision JSON malformed: %w", err)
	}
	if !validation.Valid() {
		issues := make([]string, 0, len(validation.Errors()))
		for _, desc := range validation.Errors() {
			issues = append(issues, desc.String())
		}
		return models.DecisionResult{}, fmt.Errorf("decision JSON invalid: %s", strings.Join(issues, "; "))
	}

	var raw struct {
		Decision        string                 `json:"decision"`
		PaymentMode     string                 `json:"payment_mode"`
		Amount          *float64               `json:"amount"`
		Justification   string                 `json:"justification"`
		SourceClauses   []string               `json:"source_clauses"`
		ConfidenceScore *float64               `json:"confidence_score"`
		Metadata        map[string]interface{} `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return models.DecisionResult{}, fmt.Errorf("decode decision JSON: %w", err)
	}

	result := models.DecisionResult{
		Decision:        raw.Decision,
		PaymentMode:     raw.PaymentMode,
		Amount:          raw.Amount,
		Justification:   raw.Justification,
		SourceClauses:   raw.SourceClauses,
		ConfidenceScore: 0.5,
		Metadata:        raw.Metadata,
	}
	if result.Decision == "" {
		result.Decision = models.DecisionPending
	}
	if result.PaymentMode == "" {
		result.PaymentMode = models.PaymentModeUnknown
	}
	if result.SourceClauses == nil {
		result.SourceClauses = []string{}
	}
	if raw.ConfidenceScore != nil {
		result.ConfidenceScore = *raw.ConfidenceScore
	}
	return result, nil
}

func errorResult(justification string) models.DecisionResult {
	return models.DecisionResult{
		Decision:        models.DecisionError,
		PaymentMode:     models.PaymentModeUnknown,
		Justification:   justification,
		SourceClauses:   []string{},
		ConfidenceScore: 0.0,
	}
}
