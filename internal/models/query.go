package models

// QueryType is the coarse classification assigned by the query parser.
type QueryType string

const (
	QueryTypeInsuranceClaim QueryType = "insurance_claim"
	QueryTypeContractReview QueryType = "contract_review"
	QueryTypePolicyCheck    QueryType = "policy_check"
	QueryTypeGeneral        QueryType = "general"
)

// QueryRequest is the inbound query payload. DocumentIDs optionally scopes
// retrieval to a subset of previously ingested documents.
type QueryRequest struct {
	Query       string                 `json:"query"`
	DocumentIDs []string               `json:"document_ids,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// ParsedQuery is the structured form of a free-text query: deterministic
// pattern matches merged with the auxiliary model pass.
type ParsedQuery struct {
	OriginalQuery  string                 `json:"original_query"`
	StructuredData map[string]interface{} `json:"structured_data"`
	QueryType      QueryType              `json:"query_type"`
	KeyEntities    []string               `json:"key_entities"`
	Intent         string                 `json:"intent"`
}
