package workers

import (
	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

// scriptH2Fingerprints are HTTP/2 SETTINGS fingerprints known to be
// produced by non-browser client libraries.
var scriptH2Fingerprints = map[string]bool{
	"h2-go-http2-default":  true,
	"h2-okhttp-default":    true,
	"h2-nghttp2-default":   true,
	"h2-python-hyper-h2":   true,
}

// H2Fingerprint matches HTTP/2 SETTINGS frames against known library
// fingerprints.
func H2Fingerprint(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	if ev.H2Settings == nil {
		return nil
	}

	browserUA := looksLikeBrowser(ev.UserAgent)
	scriptFP := scriptH2Fingerprints[ev.H2Settings.Fingerprint]
	known := scriptFP // extend with browser-fingerprint table if needed

	var raw float64
	var evidence []string

	switch {
	case browserUA && scriptFP:
		raw += 0.72
		evidence = append(evidence, "browser_ua_script_h2_fingerprint")
	case scriptFP:
		raw += 0.20
		evidence = append(evidence, "script_h2_fingerprint")
	case !known && browserUA:
		raw += 0.15
		evidence = append(evidence, "unknown_h2_fingerprint_browser_ua")
	}

	if headerPresentAny(ev.HeaderOrder, []string{"grpc-encoding", "grpc-status", "te"}) {
		raw += 0.10
		evidence = append(evidence, "grpc_header_tag")
	}

	if scriptFP && ev.H2Settings.InitialWindowSize > 200_000_000 {
		raw += 0.15
		evidence = append(evidence, "oversized_initial_window")
	}

	if raw == 0 {
		return nil
	}

	confidence := clamp01(float64(len(snap.Events)) / 20)
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerH2Fingerprint,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}
