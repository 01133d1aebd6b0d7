package models

import "fmt"

// Status is a submission's lifecycle stage.
type Status string

const (
	StatusPending            Status = "PENDING"
	StatusProcessing         Status = "PROCESSING"
	StatusOracleVerification Status = "ORACLE_VERIFICATION"
	StatusABMAnalysis        Status = "ABM_ANALYSIS"
	StatusFraudDetection     Status = "FRAUD_DETECTION"
	StatusConsensusScoring   Status = "CONSENSUS_SCORING"
	StatusEligible           Status = "ELIGIBLE"
	StatusRejected           Status = "REJECTED"
)

// stageOrder ranks statuses. Both terminal states share the last rank.
var stageOrder = map[Status]int{
	StatusPending:            0,
	StatusProcessing:         1,
	StatusOracleVerification: 2,
	StatusABMAnalysis:        3,
	StatusFraudDetection:     4,
	StatusConsensusScoring:   5,
	StatusEligible:           6,
	StatusRejected:           6,
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := stageOrder[s]
	return ok
}

// IsTerminal reports whether s is ELIGIBLE or REJECTED.
func (s Status) IsTerminal() bool {
	return s == StatusEligible || s == StatusRejected
}

// Rank returns the position of s in the stage order, or -1 if unknown.
func (s Status) Rank() int {
	r, ok := stageOrder[s]
	if !ok {
		return -1
	}
	return r
}

// CanTransitionTo reports whether moving from s to next is legal: the
// immediate successor, REJECTED from any non-terminal stage, or ELIGIBLE
// only out of CONSENSUS_SCORING.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() || !next.IsValid() {
		return false
	}
	switch next {
	case StatusRejected:
		return true
	case StatusEligible:
		return s == StatusConsensusScoring
	}
	return next.Rank() == s.Rank()+1
}

// ParseStatus validates a stored status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown submission status %q", raw)
	}
	return s, nil
}

// KindStageOrderViolation is the error kind written to progress logs.
const KindStageOrderViolation = "StageOrderViolation"

// StageOrderViolation is returned for any transition that skips, repeats or
// rewinds a stage, or leaves a terminal stage.
type StageOrderViolation struct {
	From Status
	To   Status
}

func (e *StageOrderViolation) Error() string {
	return fmt.Sprintf("illegal stage transition %s -> %s", e.From, e.To)
}

func (e *StageOrderViolation) Kind() string { return KindStageOrderViolation }
