// Package consensus applies the hard eligibility rules to oracle and analysis scores.
// Everything here is pure: no I/O, no clock reads.
package consensus

import (
	"fmt"
	"math"
	"time"

	"proptoken/internal/analysis"
	oraclemodels "proptoken/internal/oracle/models"
)

type rule struct {
	name       string
	comparator Comparator
	threshold  float64
	actual     func(Input) float64
}

// rules are evaluated in this order; the first failure names the rejection.
var rules = []rule{
	{RuleExistence, AtLeast, ExistenceThreshold, func(in Input) float64 { return in.ExistenceScore }},
	{RuleOwnership, AtLeast, OwnershipThreshold, func(in Input) float64 { return in.OwnershipProbability }},
	{RuleFraud, AtMost, FraudThreshold, func(in Input) float64 { return in.FraudLikelihood }},
}

// CalculateScore builds the engine input from the oracle outcome and the joined
// analysis result, then evaluates it.
func CalculateScore(outcome *oraclemodels.Outcome, res *analysis.Result, at time.Time) (*Score, error) {
	return Evaluate(Input{
		SubmissionID:         outcome.SubmissionID,
		ExistenceScore:       outcome.Existence.Score,
		OwnershipProbability: outcome.Ownership.Score,
		ActivityScore:        outcome.Activity.Score,
		FraudLikelihood:      res.Fraud.Likelihood(),
		RiskScore:            res.RiskScore,
	}, at)
}

// Evaluate validates the input ranges and applies every rule in order.
func Evaluate(in Input, at time.Time) (*Score, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	evals := make([]RuleEvaluation, 0, len(rules))
	var reason *string
	allPassed := true

	for _, r := range rules {
		actual := r.actual(in)
		passed := actual >= r.threshold
		if r.comparator == AtMost {
			passed = actual <= r.threshold
		}
		evals = append(evals, RuleEvaluation{
			Rule:        r.name,
			Comparator:  r.comparator,
			Threshold:   r.threshold,
			ActualValue: actual,
			Passed:      passed,
		})
		if !passed && reason == nil {
			msg := rejectionReason(r, actual)
			reason = &msg
			allPassed = false
		}
	}

	confidence := Confidence(in)
	if err := checkRange("confidence", confidence, 0, 1); err != nil {
		return nil, err
	}

	return &Score{
		SubmissionID:         in.SubmissionID,
		ExistenceScore:       in.ExistenceScore,
		OwnershipProbability: in.OwnershipProbability,
		ActivityScore:        in.ActivityScore,
		FraudLikelihood:      in.FraudLikelihood,
		RiskScore:            in.RiskScore,
		Rules:                evals,
		AllRulesPassed:       allPassed,
		Eligible:             allPassed,
		Confidence:           confidence,
		RejectionReason:      reason,
		CalculatedAt:         at,
	}, nil
}

// Confidence is the mean of existence, ownership and the fraud headroom
// (1 - fraud/100). It rises with existence and ownership and falls with fraud.
func Confidence(in Input) float64 {
	return (in.ExistenceScore + in.OwnershipProbability + (1 - in.FraudLikelihood/100)) / 3
}

func rejectionReason(r rule, actual float64) string {
	direction := "below minimum"
	if r.comparator == AtMost {
		direction = "above maximum"
	}
	return fmt.Sprintf("%s %.4f %s threshold %.2f", r.name, actual, direction, r.threshold)
}

func validate(in Input) error {
	checks := []struct {
		field    string
		value    float64
		min, max float64
	}{
		{RuleExistence, in.ExistenceScore, 0, 1},
		{RuleOwnership, in.OwnershipProbability, 0, 1},
		{"activity_score", in.ActivityScore, 0, 1},
		{RuleFraud, in.FraudLikelihood, 0, 100},
		{"risk_score", in.RiskScore, 0, 100},
	}
	for _, c := range checks {
		if err := checkRange(c.field, c.value, c.min, c.max); err != nil {
			return err
		}
	}
	return nil
}

func checkRange(field string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return &InvariantError{Field: field, Value: v, Min: lo, Max: hi}
	}
	return nil
}
