// Package events defines the data types that flow through the gatewatch
// detection core: parsed API events in, signals and risk decisions out.
//
// These mirror the shape captured upstream by the kernel-side TLS probes and
// HTTP reassembler (external collaborators, not part of this module) — see
// SPEC_FULL.md §1 for the boundary.
package events

import "time"

// H2Settings is the HTTP/2 SETTINGS frame advertised by the client,
// fingerprinted by library (python-httpx, Go net/http2, curl, Chrome all
// ship distinct defaults).
type H2Settings struct {
	HeaderTableSize      uint32 `json:"header_table_size"`
	EnablePush           uint8  `json:"enable_push"`
	MaxConcurrentStreams uint32 `json:"max_concurrent_streams,omitempty"`
	InitialWindowSize    uint32 `json:"initial_window_size"`
	MaxFrameSize         uint32 `json:"max_frame_size"`
	MaxHeaderListSize    uint32 `json:"max_header_list_size,omitempty"`
	// Fingerprint is hex(SHA-256(canonical settings tuple)[:8]), precomputed
	// by the upstream reassembler and carried verbatim here.
	Fingerprint string `json:"fingerprint"`
}

// ASN describes the autonomous system that originated the request.
type ASN struct {
	Number uint32 `json:"number"`
	Org    string `json:"org"`
}

// TLSLibrary identifies the client's TLS implementation, detected upstream
// from uprobe symbol resolution. Dropped by the spec's distillation but kept
// here because the Fingerprint worker's evidence strings name it.
type TLSLibrary string

const (
	TLSLibraryUnknown   TLSLibrary = "unknown"
	TLSLibraryOpenSSL   TLSLibrary = "openssl"
	TLSLibraryBoringSSL TLSLibrary = "boringssl"
	TLSLibraryNSS       TLSLibrary = "nss"
	TLSLibraryGoTLS     TLSLibrary = "go_tls"
)

// Event is one per-request record, already parsed and assembled by external
// collaborators. Absent optional fields disable the workers that require
// them; unknown fields on the wire are ignored by the JSON decoder.
type Event struct {
	RequestID  string    `json:"request_id"`
	AccountID  string    `json:"account_id"`
	Timestamp  time.Time `json:"timestamp"`
	SourceAddr string    `json:"source_addr"`
	UserAgent  string    `json:"user_agent"`
	Model      string    `json:"model"`
	Prompt     string    `json:"prompt"`
	TokenCount int       `json:"token_count"`

	PaymentHash     string `json:"payment_hash,omitempty"`
	OrgID           string `json:"org_id,omitempty"`
	CountryCode     string `json:"country_code"`
	HeaderOrder     []string `json:"header_order,omitempty"`
	ClientFP        string `json:"client_fingerprint,omitempty"`
	ServerFP        string `json:"server_fingerprint,omitempty"`
	H2Settings      *H2Settings `json:"h2_settings,omitempty"`
	TLSLibrary      TLSLibrary  `json:"tls_library,omitempty"`
	ASN             *ASN        `json:"asn,omitempty"`
	MaxTokens       *int        `json:"max_tokens,omitempty"`
	PreambleHash    string      `json:"preamble_hash,omitempty"`
	CampaignLabel   string      `json:"campaign_label,omitempty"`
}

// RestrictedCountries lists country codes that trigger the fusion engine's
// geographic uplift and the per-worker restricted-country contributions.
var RestrictedCountries = map[string]bool{
	"CN": true,
}

// IsRestricted reports whether cc is one of the fusion engine's restricted
// country codes.
func IsRestricted(cc string) bool {
	return RestrictedCountries[cc]
}

// ModelSwitch records a transition between two models for one account.
type ModelSwitch struct {
	Timestamp time.Time `json:"timestamp"`
	OldModel  string    `json:"old_model"`
	NewModel  string    `json:"new_model"`
}

// CanaryToken is a short opaque string embedded in outbound responses; its
// reappearance in a future inbound prompt confirms distillation.
type CanaryToken struct {
	Token             string     `json:"token"`
	AccountID         string     `json:"account_id"`
	RequestID         string     `json:"request_id"`
	InsertedAt        time.Time  `json:"inserted_at"`
	Triggered         bool       `json:"triggered"`
	TriggerTimestamp  *time.Time `json:"trigger_ts,omitempty"`
}

// WorkerID is a closed, tagged-variant enumeration of the 16 active
// detection workers. The fusion engine's weight table must enumerate
// exactly this set — there is no open dispatch.
type WorkerID string

const (
	WorkerFingerprint    WorkerID = "fingerprint"
	WorkerVelocity       WorkerID = "velocity"
	WorkerCoT            WorkerID = "cot"
	WorkerEmbedding      WorkerID = "embedding"
	WorkerHydra          WorkerID = "hydra"
	WorkerPivot          WorkerID = "pivot"
	WorkerTimingCluster  WorkerID = "timing_cluster"
	WorkerH2Fingerprint  WorkerID = "h2_fingerprint"
	WorkerBiometric      WorkerID = "biometric"
	WorkerWatermark      WorkerID = "watermark"
	WorkerASN            WorkerID = "asn_classifier"
	WorkerRolePreamble   WorkerID = "role_preamble"
	WorkerSessionGap     WorkerID = "session_gap"
	WorkerTokenBudget    WorkerID = "token_budget"
	WorkerRefusalProbe   WorkerID = "refusal_probe"
	WorkerSequenceModel  WorkerID = "sequence_model"
)

// AllWorkers is the closed set of active workers, in the iteration order
// that fusion's top-evidence concatenation follows.
var AllWorkers = []WorkerID{
	WorkerFingerprint,
	WorkerVelocity,
	WorkerCoT,
	WorkerEmbedding,
	WorkerHydra,
	WorkerTimingCluster,
	WorkerH2Fingerprint,
	WorkerPivot,
	WorkerBiometric,
	WorkerWatermark,
	WorkerASN,
	WorkerRolePreamble,
	WorkerSessionGap,
	WorkerTokenBudget,
	WorkerRefusalProbe,
	WorkerSequenceModel,
}

// Signal is the output of one worker on one event. Transient: fusion
// consumes it and it is never stored beyond the current event's processing.
type Signal struct {
	Worker     WorkerID               `json:"worker"`
	Score      float64                `json:"score"`
	Confidence float64                `json:"confidence"`
	Evidence   []string               `json:"evidence,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// StatusPlaceholders are evidence strings that carry no signal of their own
// and are dropped from fusion's top-evidence list.
var StatusPlaceholders = map[string]bool{
	"cached":              true,
	"no_cluster":          true,
	"insufficient_data":   true,
	"small_cluster":       true,
	"account_watermarked": true,
}

// Tier discretizes the composite score into bands.
type Tier string

const (
	TierNone     Tier = ""
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// ActionKind is the enforcement action selected for a risk decision.
type ActionKind string

const (
	ActionNone            ActionKind = "none"
	ActionRateLimit       ActionKind = "rate_limit"
	ActionInjectCanary    ActionKind = "inject_canary"
	ActionSuspendAccount  ActionKind = "suspend_account"
	ActionClusterTakedown ActionKind = "cluster_takedown"
)

// RiskDecision is the per-event fusion output (or omitted entirely below the
// lowest threshold).
type RiskDecision struct {
	AccountID      string             `json:"account_id"`
	CompositeScore float64            `json:"composite_score"`
	Tier           Tier               `json:"tier"`
	WorkerScores   map[WorkerID]float64 `json:"worker_scores"`
	TopEvidence    []string           `json:"top_evidence"`
	CountryCodes   []string           `json:"country_codes"`
	ClusterID      *uint64            `json:"cluster_id,omitempty"`
	WindowSize     int                `json:"window_size"`
	Action         ActionKind         `json:"action"`
	Timestamp      time.Time          `json:"timestamp"`
	GroundTruth    string             `json:"ground_truth,omitempty"`
}

// EnforcementAction is the outbound enforcement action emitted by the
// action gate, matching SPEC_FULL.md §8's wire schema.
type EnforcementAction struct {
	ActionType        ActionKind   `json:"action_type"`
	AccountID         string       `json:"account_id"`
	ClusterID         *uint64      `json:"cluster_id,omitempty"`
	AffectedAccounts  []string     `json:"affected_accounts"`
	Reason            string       `json:"reason"`
	Evidence          []string     `json:"evidence"`
	CompositeScore    float64      `json:"composite_score"`
	CanaryToken       *CanaryToken `json:"canary_token,omitempty"`
	Timestamp         time.Time    `json:"timestamp"`
}

// IndicatorBundle is the cluster-wide indicator aggregation emitted on
// Cluster Takedown.
type IndicatorBundle struct {
	ClusterID            uint64    `json:"cluster_id"`
	Addresses            []string  `json:"addresses"`
	Subnets              []string  `json:"subnets"`
	PaymentHashes        []string  `json:"payment_hashes"`
	ClientFingerprints   []string  `json:"client_fingerprints"`
	ServerFingerprints   []string  `json:"server_fingerprints"`
	H2Fingerprints       []string  `json:"h2_fingerprints"`
	HeaderHashes         []string  `json:"header_hashes"`
	TriggeredCanaries    []string  `json:"triggered_canaries"`
	MemberAccounts       []string  `json:"member_accounts"`
	CountryCodes         []string  `json:"country_codes"`
	FirstSeen            time.Time `json:"first_seen"`
	LastSeen             time.Time `json:"last_seen"`
	TotalRequests        int64     `json:"total_requests"`
	TopEvidence           []string  `json:"top_evidence"`
	Confidence            float64  `json:"confidence"`
	Timestamp             time.Time `json:"timestamp"`
}
