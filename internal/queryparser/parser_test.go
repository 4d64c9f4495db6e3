package queryparser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"claimsight/internal/common/logger"
	"claimsight/internal/models"
)

type stubGenerator struct {
	response string
	err      error
	called   bool
}

func (s *stubGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	s.called = true
	return s.response, s.err
}

func newTestParser(t *testing.T, gen *stubGenerator) *Parser {
	log := logger.NewZapAdapter(zaptest.NewLogger(t))
	if gen == nil {
		return New(nil, log)
	}
	return New(gen, log)
}

func TestParse_EmptyQuery(t *testing.T) {
	p := newTestParser(t, nil)

	for _, query := range []string{"", "   ", "\t\n"} {
		_, err := p.Parse(context.Background(), query)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EMPTY_QUERY")
	}
}

func TestParse_PatientProfile(t *testing.T) {
	p := newTestParser(t, nil)

	parsed, err := p.Parse(context.Background(), "46-year-old male, knee surgery, 3-month policy")
	require.NoError(t, err)

	assert.Equal(t, 46, parsed.StructuredData["age"])
	assert.Equal(t, "male", parsed.StructuredData["gender"])
	assert.Equal(t, map[string]interface{}{"value": 3, "unit": "month"}, parsed.StructuredData["time_period"])
	assert.Equal(t, models.QueryTypeInsuranceClaim, parsed.QueryType)
	assert.Contains(t, parsed.KeyEntities, "surgery")
	assert.Contains(t, parsed.KeyEntities, "policy")
}

func TestExtractPatterns(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  map[string]interface{}
	}{
		{
			name:  "shorthand age with gender",
			query: "46M, cardiac procedure",
			want:  map[string]interface{}{"age": 46, "gender": "male"},
		},
		{
			name:  "female shorthand",
			query: "32F knee replacement",
			want:  map[string]interface{}{"age": 32, "gender": "female"},
		},
		{
			name:  "female word not mistaken for male",
			query: "female patient, 28 years old",
			want:  map[string]interface{}{"age": 28, "gender": "female"},
		},
		{
			name:  "currency amount with grouping",
			query: "claim of $1,50,000.50 submitted",
			want:  map[string]interface{}{"amount": 150000.50},
		},
		{
			name:  "bare number is not an amount",
			query: "46 year old patient",
			want:  map[string]interface{}{"age": 46},
		},
		{
			name:  "rupee amount",
			query: "premium of ₹5000 paid",
			want:  map[string]interface{}{"amount": float64(5000)},
		},
		{
			name:  "location after in",
			query: "surgery in Pune, last month",
			want:  map[string]interface{}{"location": "Pune"},
		},
		{
			name:  "no patterns",
			query: "what does the document say",
			want:  map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractPatterns(tt.query)
			for key, want := range tt.want {
				assert.Equal(t, want, got[key], "field %s", key)
			}
			for key := range got {
				_, expected := tt.want[key]
				assert.True(t, expected, "unexpected field %s=%v", key, got[key])
			}
		})
	}
}

func TestExtractPatterns_TimePeriodUnits(t *testing.T) {
	for _, tt := range []struct {
		query string
		value int
		unit  string
	}{
		{"3-month policy", 3, "month"},
		{"2 year waiting period", 2, "year"},
		{"90 day window", 90, "day"},
		{"6 week recovery", 6, "week"},
	} {
		got := extractPatterns(tt.query)
		require.Contains(t, got, "time_period", tt.query)
		period := got["time_period"].(map[string]interface{})
		assert.Equal(t, tt.value, period["value"])
		assert.Equal(t, tt.unit, period["unit"])
	}
}

func TestClassifyQuery(t *testing.T) {
	tests := []struct {
		query string
		want  models.QueryType
	}{
		{"is this claim covered by my insurance", models.QueryTypeInsuranceClaim},
		{"review the contract terms", models.QueryTypeContractReview},
		{"does this rule apply here", models.QueryTypePolicyCheck},
		{"what is the capital of France", models.QueryTypeGeneral},
		// "policy" hits the insurance branch before the policy-check branch.
		{"policy regulation question", models.QueryTypeInsuranceClaim},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyQuery(tt.query), tt.query)
	}
}

func TestDetermineIntent(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"is knee surgery covered", "approval_check"},
		{"what payout can I expect", "amount_calculation"},
		{"what is the status of my claim", "status_inquiry"},
		{"tell me about the document", "general_inquiry"},
		// approval check wins over amount when both appear
		{"what amount is covered", "approval_check"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, determineIntent(tt.query), tt.query)
	}
}

func TestParse_ModelEnrichment(t *testing.T) {
	gen := &stubGenerator{response: "Here is the result: {\"medical_procedure\": \"knee surgery\", \"urgency\": \"routine\"} done"}
	p := newTestParser(t, gen)

	parsed, err := p.Parse(context.Background(), "46-year-old male, knee surgery")
	require.NoError(t, err)
	require.True(t, gen.called)

	assert.Equal(t, "knee surgery", parsed.StructuredData["medical_procedure"])
	assert.Equal(t, "routine", parsed.StructuredData["urgency"])
	assert.Equal(t, 46, parsed.StructuredData["age"])
}

func TestParse_ModelFailureIsFailOpen(t *testing.T) {
	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{name: "transport error", gen: &stubGenerator{err: assert.AnError}},
		{name: "no JSON in response", gen: &stubGenerator{response: "I cannot help with that."}},
		{name: "malformed JSON", gen: &stubGenerator{response: "{not valid json}"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestParser(t, tt.gen)

			parsed, err := p.Parse(context.Background(), "46-year-old male, knee surgery")
			require.NoError(t, err)

			assert.Equal(t, 46, parsed.StructuredData["age"])
			assert.Equal(t, "male", parsed.StructuredData["gender"])
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{`prefix {"a":1} suffix`, `{"a":1}`, true},
		{`{"outer":{"inner":2}}`, `{"outer":{"inner":2}}`, true},
		{`no json here`, "", false},
		{`} reversed {`, "", false},
	}

	for _, tt := range tests {
		got, ok := extractJSONObject(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
