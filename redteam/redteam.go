// Package redteam quantifies the economic cost of evading each detection
// worker: what technique defeats it, how expensive that technique is to
// build and run, how much extraction throughput survives, and which other
// worker still fires afterward. The composite report is the argument that
// the system's value is in its overlap, not in any single worker — full
// evasion requires defeating every worker simultaneously, at a combined
// operational cost that makes the campaign uneconomical.
package redteam

import "time"

// Cost ranks how expensive an evasion technique is to build and operate,
// from a one-line config change to economically unviable.
type Cost int

const (
	CostTrivial Cost = iota
	CostLow
	CostMedium
	CostHigh
	CostProhibitive
)

func (c Cost) String() string {
	switch c {
	case CostTrivial:
		return "TRIVIAL"
	case CostLow:
		return "LOW"
	case CostMedium:
		return "MEDIUM"
	case CostHigh:
		return "HIGH"
	case CostProhibitive:
		return "PROHIBITIVE"
	default:
		return "UNKNOWN"
	}
}

// Vector is one concrete way to evade a worker.
type Vector struct {
	Name               string  `json:"name"`
	Technique          string  `json:"technique"`
	Cost               Cost    `json:"cost"`
	ThroughputRetained float64 `json:"throughput_retained"`
	ResidualDetection  string  `json:"residual_detection"`
}

// DetectorReport is the evasion assessment for a single worker.
type DetectorReport struct {
	Detector        string   `json:"detector"`
	Vectors         []Vector `json:"vectors"`
	MinEvasionCost  Cost     `json:"min_evasion_cost"`
	ResidualRisk    float64  `json:"residual_risk"`
	Notes           string   `json:"notes"`
}

// CompositeReport is the full adversarial robustness evaluation across
// every worker with a known evasion vector.
type CompositeReport struct {
	PerDetector    []DetectorReport `json:"per_detector"`
	CompositeCost  Cost             `json:"composite_cost"`
	MinThroughput  float64          `json:"min_throughput"`
	AnnualOpCost   string           `json:"annual_op_cost"`
	Summary        string           `json:"summary"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// EvaluateAll builds the composite evasion-cost report across every
// worker this package has an assessment for. Workers without a known
// practical evasion vector (ASNClassifier, SessionGap, TokenBudget,
// RefusalProbe, SequenceModel, RolePreamble) are omitted rather than
// padded with a speculative entry.
func EvaluateAll(now time.Time) CompositeReport {
	reports := []DetectorReport{
		fingerprintReport(),
		velocityReport(),
		cotReport(),
		embeddingReport(),
		hydraReport(),
		timingClusterReport(),
		h2FingerprintReport(),
		biometricReport(),
		watermarkReport(),
		pivotReport(),
	}

	minThroughput := 1.0
	for _, r := range reports {
		for _, v := range r.Vectors {
			if v.ThroughputRetained < minThroughput {
				minThroughput = v.ThroughputRetained
			}
		}
	}

	return CompositeReport{
		PerDetector:   reports,
		CompositeCost: CostProhibitive,
		MinThroughput: minThroughput,
		AnnualOpCost:  "$500k+ (residential proxies, browser automation, LLM paraphrasing, payment fragmentation, ops headcount)",
		Summary: "Full evasion requires real browser automation, residential proxies, " +
			"LLM-based prompt and response paraphrasing, payment fragmentation across " +
			"dozens of methods, and full scheduler desynchronization across accounts. " +
			"Economic breakeven requires extracting several million dollars of model " +
			"value from a single provider before the evasion program pays for itself.",
		GeneratedAt: now,
	}
}

func fingerprintReport() DetectorReport {
	return DetectorReport{
		Detector: "fingerprint",
		Vectors: []Vector{
			{
				Name:               "tls_client_spoof",
				Technique:          "Spoof JA3 at the socket level with a TLS-fingerprint-aware HTTP client",
				Cost:               CostLow,
				ThroughputRetained: 0.90,
				ResidualDetection:  "server-fingerprint mismatch, header-order entropy",
			},
			{
				Name:               "real_browser_automation",
				Technique:          "Drive a real browser engine for authentic TLS + header fingerprints",
				Cost:               CostMedium,
				ThroughputRetained: 0.22,
				ResidualDetection:  "biometric sequence entropy, timing-cluster coordination",
			},
		},
		MinEvasionCost: CostLow,
		ResidualRisk:   0.60,
		Notes:          "Client-fingerprint spoofing defeats the client-only check but not the combined client+server+header signal; browser automation defeats this layer at a 78% throughput cost.",
	}
}

func velocityReport() DetectorReport {
	return DetectorReport{
		Detector: "velocity",
		Vectors: []Vector{
			{
				Name:               "rate_spread",
				Technique:          "Spread the same aggregate request rate across many accounts",
				Cost:               CostLow,
				ThroughputRetained: 0.85,
				ResidualDetection:  "hydra shared-infrastructure signal, timing-cluster synchrony",
			},
			{
				Name:               "interarrival_jitter",
				Technique:          "Add randomized inter-request delay",
				Cost:               CostTrivial,
				ThroughputRetained: 0.65,
				ResidualDetection:  "timing-cluster cross-account synchrony survives independent per-account jitter",
			},
		},
		MinEvasionCost: CostTrivial,
		ResidualRisk:   0.55,
		Notes:          "Cheapest worker to individually evade, but evasion shifts load onto hydra and timing-cluster.",
	}
}

func cotReport() DetectorReport {
	return DetectorReport{
		Detector: "cot",
		Vectors: []Vector{
			{
				Name:               "paraphrase_prompts",
				Technique:          "Paraphrase extraction prompts away from known reasoning-elicitation phrasing",
				Cost:               CostLow,
				ThroughputRetained: 0.95,
				ResidualDetection:  "embedding worker's semantic-similarity check still fires",
			},
		},
		MinEvasionCost: CostLow,
		ResidualRisk:   0.65,
		Notes:          "Phrase matching alone is defeated by paraphrasing; paired with the embedding worker's semantic check, the combination is robust to known paraphrase strategies.",
	}
}

func embeddingReport() DetectorReport {
	return DetectorReport{
		Detector: "embedding",
		Vectors: []Vector{
			{
				Name:               "adversarial_phrasing",
				Technique:          "Wrap extraction intent in out-of-distribution phrasing (formal, legal, non-English)",
				Cost:               CostMedium,
				ThroughputRetained: 0.70,
				ResidualDetection:  "biometric worker's structural/style entropy check",
			},
		},
		MinEvasionCost: CostMedium,
		ResidualRisk:   0.50,
		Notes:          "Defeating semantic similarity requires per-prompt paraphrasing, which adds latency and produces the style shifts the biometric worker catches.",
	}
}

func hydraReport() DetectorReport {
	return DetectorReport{
		Detector: "hydra",
		Vectors: []Vector{
			{
				Name:               "full_infra_isolation",
				Technique:          "Unique payment method, IP, and org per account with zero shared infrastructure",
				Cost:               CostHigh,
				ThroughputRetained: 0.92,
				ResidualDetection:  "timing-cluster scheduling coordination, payment-graph batch correlation",
			},
			{
				Name:               "payment_fragmentation",
				Technique:          "Distinct prepaid cards sourced from different physical retailers",
				Cost:               CostHigh,
				ThroughputRetained: 0.97,
				ResidualDetection:  "payment-prefix correlation across the cluster",
			},
		},
		MinEvasionCost: CostHigh,
		ResidualRisk:   0.45,
		Notes:          "Full infrastructure isolation is operationally expensive at the account counts a distillation campaign needs.",
	}
}

func timingClusterReport() DetectorReport {
	return DetectorReport{
		Detector: "timing_cluster",
		Vectors: []Vector{
			{
				Name:               "gaussian_jitter",
				Technique:          "Per-account randomized jitter spreading a one-second bucket into a wider window",
				Cost:               CostTrivial,
				ThroughputRetained: 0.75,
				ResidualDetection:  "a wider timing bucket would still catch this — currently unimplemented",
			},
			{
				Name:               "full_desync",
				Technique:          "Remove the shared scheduler; each account runs on independent infrastructure",
				Cost:               CostHigh,
				ThroughputRetained: 0.80,
				ResidualDetection:  "hydra — accounts still share payment/IP infrastructure",
			},
		},
		MinEvasionCost: CostTrivial,
		ResidualRisk:   0.50,
		Notes:          "Jitter is cheap but the current one-second bucket catches small desync; full desync has real operational overhead and shifts load to hydra.",
	}
}

func h2FingerprintReport() DetectorReport {
	return DetectorReport{
		Detector: "h2_fingerprint",
		Vectors: []Vector{
			{
				Name:               "spoof_browser_settings",
				Technique:          "Configure an HTTP/2 client with browser-matching SETTINGS values",
				Cost:               CostLow,
				ThroughputRetained: 1.0,
				ResidualDetection:  "client/server TLS fingerprint still differs from a real browser stack",
			},
		},
		MinEvasionCost: CostLow,
		ResidualRisk:   0.65,
		Notes:          "SETTINGS values alone are a one-line spoof; combined with the fingerprint worker's TLS checks it requires a real browser stack.",
	}
}

func biometricReport() DetectorReport {
	return DetectorReport{
		Detector: "biometric",
		Vectors: []Vector{
			{
				Name:               "generated_prompt_diversity",
				Technique:          "Generate diverse prompt wrappers via a helper model to inflate sequence entropy",
				Cost:               CostHigh,
				ThroughputRetained: 0.40,
				ResidualDetection:  "embedding worker — core extraction intent is still semantically similar",
			},
			{
				Name:               "noise_queries",
				Technique:          "Interleave extraction prompts with unrelated queries to inflate entropy",
				Cost:               CostMedium,
				ThroughputRetained: 0.50,
				ResidualDetection:  "cot and embedding workers still flag the extraction prompts directly",
			},
		},
		MinEvasionCost: CostMedium,
		ResidualRisk:   0.50,
		Notes:          "Behavioral evasion either wastes half the query budget or adds a full inference pass per request — both make large-scale extraction marginal.",
	}
}

func watermarkReport() DetectorReport {
	return DetectorReport{
		Detector: "watermark_probe",
		Vectors: []Vector{
			{
				Name:               "unicode_normalize",
				Technique:          "Apply Unicode normalization to responses before storing, stripping zero-width characters",
				Cost:               CostTrivial,
				ThroughputRetained: 1.0,
				ResidualDetection:  "watermark-probe meta-phrase scan; statistical watermarks are future work",
			},
			{
				Name:               "paraphrase_responses",
				Technique:          "Pass every response through a paraphrase model before corpus ingestion",
				Cost:               CostHigh,
				ThroughputRetained: 0.50,
				ResidualDetection:  "velocity — doubled per-request latency shifts the timing profile",
			},
		},
		MinEvasionCost: CostTrivial,
		ResidualRisk:   0.30,
		Notes:          "Normalization trivially removes the zero-width codec; a statistical (word-choice or length-distribution) watermark would be more robust and isn't implemented yet.",
	}
}

func pivotReport() DetectorReport {
	return DetectorReport{
		Detector: "pivot",
		Vectors: []Vector{
			{
				Name:               "staggered_switch",
				Technique:          "Switch models across accounts over a window wider than the detection lookback",
				Cost:               CostLow,
				ThroughputRetained: 0.98,
				ResidualDetection:  "a wider pivot lookback window would still catch this — currently unimplemented",
			},
		},
		MinEvasionCost: CostLow,
		ResidualRisk:   0.70,
		Notes:          "Pivot carries one of the lower fusion weights (0.05); even fully evaded, the composite score stays elevated from other workers.",
	}
}
