package models

// Decision outcome values. DecisionError is reserved for evaluation
// failures: a decision record is always owed to the caller, so failures are
// reported through it rather than raised.
const (
	DecisionApproved         = "approved"
	DecisionRejected         = "rejected"
	DecisionPending          = "pending"
	DecisionInsufficientInfo = "insufficient_information"
	DecisionError            = "error"
)

// Payment mode values. Cashless applies only when the provider is
// explicitly listed as in-network.
const (
	PaymentModeCashless      = "cashless"
	PaymentModeReimbursement = "reimbursement"
	PaymentModeUnknown       = "unknown"
)

// DecisionResult is the structured outcome rendered for a query. Decision is
// never empty: absence of evidence maps to insufficient_information.
type DecisionResult struct {
	Decision        string                 `json:"decision"`
	PaymentMode     string                 `json:"payment_mode"`
	Amount          *float64               `json:"amount"`
	Justification   string                 `json:"justification"`
	SourceClauses   []string               `json:"source_clauses"`
	ConfidenceScore float64                `json:"confidence_score"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// ProcessingResponse aggregates everything produced for one query request.
// It is assembled by the query service and never mutated afterwards.
type ProcessingResponse struct {
	Query              string            `json:"query"`
	ParsedQuery        ParsedQuery       `json:"parsed_query"`
	RetrievedDocuments []RetrievalResult `json:"retrieved_documents"`
	Decision           DecisionResult    `json:"decision"`
	ProcessingTime     float64           `json:"processing_time"`
}
