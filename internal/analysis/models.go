package analysis

import (
	oraclemodels "proptoken/internal/oracle/models"
)

// Request is the shared body for both scoring engine endpoints. The fraud
// endpoint ignores Location.
type Request struct {
	AssetData  AssetData                     `json:"asset_data"`
	Location   Location                      `json:"location"`
	Financials Financials                    `json:"financials"`
	OracleData oraclemodels.LegacyOracleData `json:"oracle_data"`
}

type fraudRequest struct {
	AssetData  AssetData                     `json:"asset_data"`
	Financials Financials                    `json:"financials"`
	OracleData oraclemodels.LegacyOracleData `json:"oracle_data"`
}

type AssetData struct {
	Name           string         `json:"name"`
	Category       string         `json:"category"`
	Owner          string         `json:"owner,omitempty"`
	RegistryIDs    []string       `json:"registry_ids,omitempty"`
	Specifications Specifications `json:"specifications"`
}

type Specifications struct {
	Size float64 `json:"size,omitempty"`
}

type Location struct {
	Address string   `json:"address,omitempty"`
	City    string   `json:"city,omitempty"`
	State   string   `json:"state,omitempty"`
	Country string   `json:"country,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Financials uses the engine's camelCase keys.
type Financials struct {
	DeclaredValue  float64 `json:"declaredValue,omitempty"`
	ExpectedYield  float64 `json:"expectedYield"`
	CashFlow       float64 `json:"cashFlow,omitempty"`
	AnnualExpenses float64 `json:"annualExpenses,omitempty"`
}

type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type NAVRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// MarketAnalysis is the market-fit assessment. It never gates eligibility.
type MarketAnalysis struct {
	ExpectedNAV NAVRange `json:"expected_nav"`
	DownsideNAV float64  `json:"downside_nav"`
	YieldBand   *Range   `json:"yield_band,omitempty"`
	TailRisk    string   `json:"tail_risk"`
	MarketDepth string   `json:"market_depth"`
	MarketScore *float64 `json:"market_score,omitempty"`
	RiskScore   *float64 `json:"risk_score,omitempty"`
}

type Anomaly struct {
	Type     string  `json:"type"`
	Severity string  `json:"severity"`
	Detail   string  `json:"detail"`
	Score    float64 `json:"score"`
}

// FraudAnalysis carries the fraud likelihood on the 0-100 scale.
type FraudAnalysis struct {
	FraudLikelihood *float64  `json:"fraud_likelihood"`
	AnomalyScore    float64   `json:"anomaly_score"`
	Anomalies       []Anomaly `json:"anomalies"`
	Passed          bool      `json:"passed"`
}

// Likelihood returns the reported fraud likelihood. Only call after validation.
func (f *FraudAnalysis) Likelihood() float64 {
	if f == nil || f.FraudLikelihood == nil {
		return 0
	}
	return *f.FraudLikelihood
}

// Result joins both analyses.
type Result struct {
	Market    MarketAnalysis `json:"market"`
	Fraud     FraudAnalysis  `json:"fraud"`
	RiskScore float64        `json:"risk_score"`
}
