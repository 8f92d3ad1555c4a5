package workers

import (
	"strings"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

// scriptClientFingerprints are TLS client-hello fingerprints known to
// belong to HTTP client libraries rather than browsers (requests, curl,
// Go's net/http, okhttp, scrapy, node-fetch...).
var scriptClientFingerprints = map[string]bool{
	"ja3-python-requests": true,
	"ja3-curl":            true,
	"ja3-go-http":         true,
	"ja3-okhttp":          true,
	"ja3-scrapy":          true,
	"ja3-node-fetch":      true,
}

var scriptServerFingerprints = map[string]bool{
	"ja3s-openssl-default": true,
	"ja3s-go-tls-default":  true,
}

var scriptIndicatorHeaders = []string{"x-requested-with-script", "x-scrapy", "x-automation"}

func looksLikeBrowser(ua string) bool {
	low := strings.ToLower(ua)
	return strings.Contains(low, "mozilla") && (strings.Contains(low, "chrome") || strings.Contains(low, "safari") || strings.Contains(low, "firefox"))
}

// Fingerprint compares the client's TLS fingerprint and header
// characteristics against known script-client and browser fingerprints.
func Fingerprint(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	var raw float64
	var evidence []string

	browserUA := looksLikeBrowser(ev.UserAgent)
	scriptClient := ev.ClientFP != "" && scriptClientFingerprints[ev.ClientFP]
	scriptServer := ev.ServerFP != "" && scriptServerFingerprints[ev.ServerFP]

	if browserUA && scriptClient {
		raw += 0.65
		evidence = append(evidence, "browser_ua_script_client_fp")
	} else if scriptClient {
		raw += 0.15
		evidence = append(evidence, "known_script_client_fp")
	}

	if len(snap.ClientFPs) >= 3 {
		raw += 0.20
		evidence = append(evidence, "multiple_client_fps")
	}
	if ev.ClientFP != "" && len(store.AccountsWithClientFP(ev.ClientFP)) >= 10 {
		raw += 0.15
		evidence = append(evidence, "shared_client_fp")
	}

	if browserUA && scriptServer {
		raw += 0.55
		evidence = append(evidence, "browser_ua_script_server_fp")
	} else if scriptServer {
		raw += 0.10
		evidence = append(evidence, "known_script_server_fp")
	}
	if len(snap.ServerFPs) >= 3 {
		raw += 0.12
		evidence = append(evidence, "multiple_server_fps")
	}
	if ev.ServerFP != "" && len(store.AccountsWithServerFP(ev.ServerFP)) >= 10 {
		raw += 0.12
		evidence = append(evidence, "shared_server_fp")
	}

	// impossible pair: a client side that otherwise reads as a browser
	// paired with a server fingerprint only ever seen from script clients.
	clientLooksBrowser := ev.ClientFP == "" && browserUA
	if clientLooksBrowser && scriptServer {
		raw += 0.30
		evidence = append(evidence, "impossible_client_server_pair")
	}

	missing := 0
	for _, h := range []string{"accept", "accept-language", "accept-encoding"} {
		if !headerPresent(ev.HeaderOrder, h) {
			missing++
		}
	}
	if missing > 0 {
		raw += 0.15
		evidence = append(evidence, "missing_standard_headers")
	}
	if headerPresentAny(ev.HeaderOrder, scriptIndicatorHeaders) {
		raw += 0.10
		evidence = append(evidence, "script_indicator_header")
	}

	entropy := headerOrderEntropy(ev.HeaderOrder)
	if len(ev.HeaderOrder) > 0 && entropy < 0.30 {
		raw += 0.20
		evidence = append(evidence, "low_header_order_entropy")
	}

	headerHash := headerHashOf(ev.HeaderOrder)
	if headerHash != "" && len(store.AccountsWithHeaderHash(headerHash)) >= 10 {
		raw += 0.20
		evidence = append(evidence, "shared_header_order_hash")
	}

	if browserUA && (scriptClient || scriptServer) {
		raw += 0.15
		evidence = append(evidence, "claimed_browser_with_script_signal")
	}

	if raw == 0 {
		return nil
	}

	if events.IsRestricted(ev.CountryCode) {
		raw *= 1.20
	}
	if raw > 1 {
		raw = 1
	}

	confidence := clamp01(float64(len(snap.Events)) / 20)
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerFingerprint,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

func headerPresent(order []string, name string) bool {
	for _, h := range order {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

func headerPresentAny(order []string, names []string) bool {
	for _, n := range names {
		if headerPresent(order, n) {
			return true
		}
	}
	return false
}

// headerHashOf mirrors state.headerHashOf's digest so the fingerprint
// worker can query the same index keys the store populated at ingest.
func headerHashOf(order []string) string {
	if len(order) == 0 {
		return ""
	}
	return state.HeaderHashOf(order)
}
