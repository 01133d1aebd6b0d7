package consensus

import (
	"time"

	id "proptoken/pkg/domain"
)

// Rule names, in evaluation order.
const (
	RuleExistence = "existence_score"
	RuleOwnership = "ownership_probability"
	RuleFraud     = "fraud_likelihood"
)

// Hard eligibility thresholds. Boundaries are inclusive.
const (
	ExistenceThreshold = 0.90
	OwnershipThreshold = 0.80
	FraudThreshold     = 5.0
)

type Comparator string

const (
	AtLeast Comparator = ">="
	AtMost  Comparator = "<="
)

// RuleEvaluation records one rule's verdict. Every rule is recorded whether or not it passed.
type RuleEvaluation struct {
	Rule        string     `json:"rule"`
	Comparator  Comparator `json:"comparator"`
	Threshold   float64    `json:"threshold"`
	ActualValue float64    `json:"actual_value"`
	Passed      bool       `json:"passed"`
}

// Input is everything the engine judges. Scores are [0,1] except fraud and
// risk, which are on the 0-100 scale.
type Input struct {
	SubmissionID         id.SubmissionID
	ExistenceScore       float64
	OwnershipProbability float64
	ActivityScore        float64
	FraudLikelihood      float64
	RiskScore            float64
}

// Score is the terminal judgment for a submission. Written once, never updated.
type Score struct {
	SubmissionID         id.SubmissionID  `json:"submission_id"`
	ExistenceScore       float64          `json:"existence_score"`
	OwnershipProbability float64          `json:"ownership_probability"`
	ActivityScore        float64          `json:"activity_score"`
	FraudLikelihood      float64          `json:"fraud_likelihood"`
	RiskScore            float64          `json:"risk_score"`
	Rules                []RuleEvaluation `json:"rules"`
	AllRulesPassed       bool             `json:"all_rules_passed"`
	Eligible             bool             `json:"eligible"`
	Confidence           float64          `json:"confidence"`
	RejectionReason      *string          `json:"rejection_reason"`
	CalculatedAt         time.Time        `json:"calculated_at"`
}

// FailedRule returns the first failing rule, if any.
func (s *Score) FailedRule() (RuleEvaluation, bool) {
	for _, r := range s.Rules {
		if !r.Passed {
			return r, true
		}
	}
	return RuleEvaluation{}, false
}
