// Package queryparser turns free-text coverage questions into structured
// queries. Deterministic pattern extraction always runs; an auxiliary model
// pass enriches the result when it succeeds and contributes nothing when it
// does not.
package queryparser

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"claimsight/internal/common/errors"
	"claimsight/internal/common/logger"
	"claimsight/internal/llm"
	"claimsight/internal/models"
)

var (
	agePattern      = regexp.MustCompile(`(?i)(\d+)[-\s]*(?:years?|yrs?|y)[-\s]*old|(\d+)M|(\d+)F`)
	amountPattern   = regexp.MustCompile(`[\$₹](\d+(?:,\d+)*(?:\.\d+)?)`)
	timePattern     = regexp.MustCompile(`(?i)(\d+)[-\s]*(month|year|day|week)`)
	ageSuffix       = regexp.MustCompile(`(?i)^s?[-\s]*old`)
	locationPattern = regexp.MustCompile(`(?i)\bin\s+([A-Za-z][A-Za-z ]*?)(?:[\s,.?!]|$)`)
	femalePattern   = regexp.MustCompile(`(?i)\bfemale\b`)
	malePattern     = regexp.MustCompile(`(?i)\bmale\b`)
)

var (
	medicalTerms   = []string{"surgery", "treatment", "procedure", "operation", "therapy"}
	insuranceTerms = []string{"policy", "claim", "coverage", "premium", "deductible"}
)

const llmParsePrompt = `Parse the following query and extract structured information:
Query: %q

Extract and return JSON with these fields if present:
- medical_procedure: any medical procedure mentioned
- insurance_type: type of insurance
- policy_details: policy-related information
- claim_type: type of claim
- urgency: urgency level
- additional_context: any other relevant information

Return only valid JSON.`

// Parser builds a ParsedQuery from raw query text. The generator is
// optional; without one only the deterministic pass runs.
type Parser struct {
	generator llm.Generator
	logger    logger.Logger
}

func New(generator llm.Generator, log logger.Logger) *Parser {
	return &Parser{
		generator: generator,
		logger:    log.WithFields(map[string]interface{}{"component": "query-parser"}),
	}
}

// Parse extracts structured fields, classifies the query, and derives intent
// and key entities. Only an empty query is an error; every downstream
// enrichment failure degrades to a smaller result.
func (p *Parser) Parse(ctx context.Context, query string) (*models.ParsedQuery, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewEmptyQueryError()
	}

	structured := extractPatterns(query)
	for k, v := range p.llmParse(ctx, query) {
		structured[k] = v
	}

	return &models.ParsedQuery{
		OriginalQuery:  query,
		StructuredData: structured,
		QueryType:      classifyQuery(query),
		KeyEntities:    extractEntities(query),
		Intent:         determineIntent(query),
	}, nil
}

// extractPatterns runs the fixed regex pass for age, gender, amount, time
// period, and location.
func extractPatterns(query string) map[string]interface{} {
	patterns := make(map[string]interface{})

	if m := agePattern.FindStringSubmatch(query); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if raw == "" {
			raw = m[3]
		}
		if age, err := strconv.Atoi(raw); err == nil {
			patterns["age"] = age
		}
		switch {
		case m[2] != "":
			patterns["gender"] = "male"
		case m[3] != "":
			patterns["gender"] = "female"
		}
	}

	if _, ok := patterns["gender"]; !ok {
		// "female" matches the male pattern as a substring, so test it first.
		if femalePattern.MatchString(query) {
			patterns["gender"] = "female"
		} else if malePattern.MatchString(query) {
			patterns["gender"] = "male"
		}
	}

	if m := amountPattern.FindStringSubmatch(query); m != nil {
		if amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			patterns["amount"] = amount
		}
	}

	// "46-year-old" would match the time pattern first; matches that
	// continue into an age phrase are skipped.
	for _, loc := range timePattern.FindAllStringSubmatchIndex(query, -1) {
		if ageSuffix.MatchString(query[loc[1]:]) {
			continue
		}
		value, err := strconv.Atoi(query[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		patterns["time_period"] = map[string]interface{}{
			"value": value,
			"unit":  strings.ToLower(query[loc[4]:loc[5]]),
		}
		break
	}

	if m := locationPattern.FindStringSubmatch(query); m != nil {
		if loc := strings.TrimSpace(m[1]); loc != "" {
			patterns["location"] = loc
		}
	}

	return patterns
}

// llmParse asks the model for the free-form fields the regex pass cannot
// see. Any failure, a transport error, a refusal, or malformed JSON, yields
// an empty map.
func (p *Parser) llmParse(ctx context.Context, query string) map[string]interface{} {
	if p.generator == nil {
		return nil
	}

	response, err := p.generator.Generate(ctx, "", fmt.Sprintf(llmParsePrompt, query))
	if err != nil {
		p.logger.Warn("model parse pass failed, continuing with pattern fields", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	payload, ok := extractJSONObject(response)
	if !ok {
		p.logger.Warn("model parse pass returned no JSON object", nil)
		return nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		p.logger.Warn("model parse pass returned malformed JSON", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return fields
}

// extractJSONObject returns the span from the first '{' to the last '}'.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// classifyQuery assigns the query type by keyword precedence.
func classifyQuery(query string) models.QueryType {
	lower := strings.ToLower(query)

	if containsAny(lower, "insurance", "claim", "policy", "coverage") {
		return models.QueryTypeInsuranceClaim
	}
	if containsAny(lower, "contract", "agreement", "terms") {
		return models.QueryTypeContractReview
	}
	if containsAny(lower, "policy", "rule", "regulation") {
		return models.QueryTypePolicyCheck
	}
	return models.QueryTypeGeneral
}

// extractEntities collects vocabulary terms present in the query, sorted for
// stable output.
func extractEntities(query string) []string {
	lower := strings.ToLower(query)

	entities := []string{}
	for _, term := range medicalTerms {
		if strings.Contains(lower, term) {
			entities = append(entities, term)
		}
	}
	for _, term := range insuranceTerms {
		if strings.Contains(lower, term) {
			entities = append(entities, term)
		}
	}
	sort.Strings(entities)
	return entities
}

// determineIntent assigns the intent label by keyword precedence.
func determineIntent(query string) string {
	lower := strings.ToLower(query)

	switch {
	case containsAny(lower, "approve", "covered", "eligible"):
		return "approval_check"
	case containsAny(lower, "amount", "payout", "compensation"):
		return "amount_calculation"
	case containsAny(lower, "status", "progress", "update"):
		return "status_inquiry"
	default:
		return "general_inquiry"
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
