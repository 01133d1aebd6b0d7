package models

import (
	"time"

	"proptoken/internal/analysis"
	"proptoken/internal/consensus"
	oraclemodels "proptoken/internal/oracle/models"
	id "proptoken/pkg/domain"
)

type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
	LevelSuccess LogLevel = "success"
)

// LogEntry is one line of a submission's append-only progress log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     Status    `json:"stage"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// StageState is shared by every pipeline stage. Progress is a percentage.
type StageState struct {
	Completed bool       `json:"completed"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Progress  int        `json:"progress"`
}

type Step struct {
	Completed bool     `json:"completed"`
	Score     *float64 `json:"score,omitempty"`
}

type AnomalyStep struct {
	Completed bool `json:"completed"`
	Anomalies int  `json:"anomalies"`
}

type PatternStep struct {
	Completed bool     `json:"completed"`
	Flags     []string `json:"flags,omitempty"`
}

type OracleStage struct {
	StageState
	Satellite Step `json:"satellite"`
	Registry  Step `json:"registry"`
	Vision    Step `json:"vision"`
	Activity  Step `json:"activity"`
	Ownership Step `json:"ownership"`
}

type ABMStage struct {
	StageState
	MarketIntelligence Step `json:"market_intelligence"`
	CashFlowSimulation Step `json:"cash_flow_simulation"`
	RiskSimulation     Step `json:"risk_simulation"`
}

type FraudStage struct {
	StageState
	RuleBased AnomalyStep `json:"rule_based"`
	MLBased   Step        `json:"ml_based"`
	Patterns  PatternStep `json:"patterns"`
}

type ConsensusStage struct {
	StageState
	Eligible   *bool    `json:"eligible,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Stages struct {
	Submission         StageState     `json:"submission"`
	OracleVerification OracleStage    `json:"oracle_verification"`
	ABMAnalysis        ABMStage       `json:"abm_analysis"`
	FraudDetection     FraudStage     `json:"fraud_detection"`
	ConsensusScoring   ConsensusStage `json:"consensus_scoring"`
}

// VerificationProgress is the observable projection of a submission's run.
// One per submission, kept after the run ends.
type VerificationProgress struct {
	SubmissionID id.SubmissionID `json:"submission_id"`
	CurrentStage Status          `json:"current_stage"`
	Stages       Stages          `json:"stages"`
	Logs         []LogEntry      `json:"logs"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// stageStarted is the progress shown while a stage's work is in flight.
const stageStarted = 10

// NewProgress opens the projection for a freshly accepted submission.
func NewProgress(subID id.SubmissionID, at time.Time) *VerificationProgress {
	p := &VerificationProgress{
		SubmissionID: subID,
		CurrentStage: StatusPending,
		Logs:         []LogEntry{},
		UpdatedAt:    at,
	}
	p.Stages.Submission = completed(at)
	p.Log(LevelInfo, "Submission received", at)
	return p
}

// Log appends an entry tagged with the current stage.
func (p *VerificationProgress) Log(level LogLevel, msg string, at time.Time) {
	p.Logs = append(p.Logs, LogEntry{Timestamp: at, Stage: p.CurrentStage, Level: level, Message: msg})
	p.UpdatedAt = at
}

// Enter mirrors a submission transition onto the projection.
func (p *VerificationProgress) Enter(stage Status, at time.Time) {
	p.CurrentStage = stage
	p.UpdatedAt = at
	if st := p.state(stage); st != nil && !st.Completed {
		st.Progress = stageStarted
	}
}

func (p *VerificationProgress) state(stage Status) *StageState {
	switch stage {
	case StatusOracleVerification:
		return &p.Stages.OracleVerification.StageState
	case StatusABMAnalysis:
		return &p.Stages.ABMAnalysis.StageState
	case StatusFraudDetection:
		return &p.Stages.FraudDetection.StageState
	case StatusConsensusScoring:
		return &p.Stages.ConsensusScoring.StageState
	}
	return nil
}

// CompleteOracle records the oracle substages. Vision stays incomplete: no
// vision probe exists.
func (p *VerificationProgress) CompleteOracle(out *oraclemodels.Outcome, at time.Time) {
	st := &p.Stages.OracleVerification
	if ev, ok := out.Evidence(oraclemodels.SourceSatellite); ok {
		st.Satellite = scored(ev.Confidence)
	}
	if ev, ok := out.Evidence(oraclemodels.SourceRegistry); ok {
		st.Registry = scored(ev.Confidence)
	}
	st.Activity = scored(out.Activity.Score)
	st.Ownership = scored(out.Ownership.Score)
	st.StageState = completed(at)
	p.UpdatedAt = at
}

func (p *VerificationProgress) CompleteABM(res *analysis.Result, at time.Time) {
	st := &p.Stages.ABMAnalysis
	st.MarketIntelligence = Step{Completed: true, Score: res.Market.MarketScore}
	st.CashFlowSimulation = Step{Completed: true}
	st.RiskSimulation = scored(res.RiskScore)
	st.StageState = completed(at)
	p.UpdatedAt = at
}

func (p *VerificationProgress) CompleteFraud(fraud *analysis.FraudAnalysis, at time.Time) {
	st := &p.Stages.FraudDetection
	st.RuleBased = AnomalyStep{Completed: true, Anomalies: len(fraud.Anomalies)}
	st.MLBased = scored(fraud.Likelihood())
	flags := make([]string, 0, len(fraud.Anomalies))
	for _, a := range fraud.Anomalies {
		flags = append(flags, a.Type)
	}
	st.Patterns = PatternStep{Completed: true, Flags: flags}
	st.StageState = completed(at)
	p.UpdatedAt = at
}

func (p *VerificationProgress) CompleteConsensus(score *consensus.Score, at time.Time) {
	st := &p.Stages.ConsensusScoring
	eligible := score.Eligible
	confidence := score.Confidence
	st.Eligible = &eligible
	st.Confidence = &confidence
	st.StageState = completed(at)
	p.UpdatedAt = at
}

func completed(at time.Time) StageState {
	return StageState{Completed: true, Timestamp: &at, Progress: 100}
}

func scored(v float64) Step {
	return Step{Completed: true, Score: &v}
}
