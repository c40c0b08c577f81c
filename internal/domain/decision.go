package domain

// DecisionStatus is the selection gate's terminal state for one query.
type DecisionStatus string

const (
	// StatusSuccess means exactly one candidate cleared the confidence gate.
	StatusSuccess DecisionStatus = "success"
	// StatusMultipleCandidates means several near-tied candidates cleared it.
	StatusMultipleCandidates DecisionStatus = "multiple_candidates"
	// StatusInsufficientInfo means nothing cleared the confidence gate.
	StatusInsufficientInfo DecisionStatus = "insufficient_info"
)

// Decision is the selection gate's output. Exactly one of the three statuses
// is produced per query. Alternatives is non-empty only for
// StatusMultipleCandidates; Selected is nil only for StatusInsufficientInfo.
type Decision struct {
	Status       DecisionStatus
	Selected     *Candidate
	Alternatives []Candidate
	Confidence   float64
	Message      string
	Reasoning    string
}
