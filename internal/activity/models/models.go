package models

import (
	"time"

	id "proptoken/pkg/domain"
)

// EventType is a platform milestone kind.
type EventType string

const (
	EventSPVSubmitted  EventType = "SPV_SUBMITTED"
	EventSPVVerified   EventType = "SPV_VERIFIED"
	EventSPVFailed     EventType = "SPV_FAILED"
	EventTokenMinted   EventType = "TOKEN_MINTED"
	EventTokenDeployed EventType = "TOKEN_DEPLOYED"
	EventTradeExecuted EventType = "TRADE_EXECUTED"
)

var eventTypes = map[EventType]struct{}{
	EventSPVSubmitted:  {},
	EventSPVVerified:   {},
	EventSPVFailed:     {},
	EventTokenMinted:   {},
	EventTokenDeployed: {},
	EventTradeExecuted: {},
}

// ParseEventType accepts only known milestone kinds.
func ParseEventType(s string) (EventType, bool) {
	t := EventType(s)
	_, ok := eventTypes[t]
	return t, ok
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
)

// Actors that emit milestones.
const (
	ActorSystem       = "SYSTEM"
	ActorScoring      = "ABM_ENGINE"
	ActorTokenFactory = "TOKEN_FACTORY"
	ActorBlockchain   = "SEPOLIA_BLOCKCHAIN"
)

// Event is one audit record. Never mutated after creation.
type Event struct {
	ID          id.EventID     `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	Actor       string         `json:"actor"`
	AssetName   string         `json:"asset_name"`
	Details     map[string]any `json:"details"`
	TxHash      string         `json:"tx_hash,omitempty"`
	ExplorerURL string         `json:"explorer_url,omitempty"`
	Status      Status         `json:"status"`
	Message     string         `json:"message"`
}

// FeedPage is a newest-first page of the feed.
type FeedPage struct {
	Events  []Event `json:"events"`
	Total   int     `json:"total"`
	HasMore bool    `json:"has_more"`
}

// Summary counts milestones across the retained window.
type Summary struct {
	TotalSubmissions int     `json:"total_submissions"`
	VerifiedCount    int     `json:"verified_count"`
	FailedCount      int     `json:"failed_count"`
	TokensMinted     int     `json:"tokens_minted"`
	RecentEvents     []Event `json:"recent_events"`
}

// SubmissionLogged describes a submission entering the pipeline.
type SubmissionLogged struct {
	SubmissionID id.SubmissionID
	AssetName    string
	Address      string
	Lat, Lng     float64
	ImageURL     string
}

// VerificationLogged describes the terminal verdict of a run.
type VerificationLogged struct {
	SubmissionID         id.SubmissionID
	AssetName            string
	Passed               bool
	Reasoning            string
	ExistenceScore       float64
	OwnershipProbability float64
	FraudLikelihood      float64
	Confidence           float64
	Fingerprint          string
}

// Minting describes a downstream token mint. Produced outside this service.
type Minting struct {
	SubmissionID    id.SubmissionID
	AssetName       string
	TokenName       string
	TokenAddress    string
	TotalSupply     string
	TransactionHash string
	ExplorerURL     string
	BlockNumber     uint64
	Status          Status
	Timestamp       time.Time
	Fingerprint     string
}
