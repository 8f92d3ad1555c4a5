package workers

import (
	"strings"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

var watermarkMetaPhrases = []string{
	"zero width", "zero-width", "invisible unicode", "invisible character",
	"steganographic", "steganography", "hidden watermark", "watermark detection",
	"joiner character", "non-joiner character", "unicode steganography",
	"detect watermark", "remove watermark", "strip invisible characters",
	"strip unicode formatting",
}

const (
	zwj  = '‍'
	zwnj = '‌'
)

// WatermarkProbe scans inbound prompts for explicit attempts to discuss or
// strip zero-width watermarking, and for the literal marker characters
// themselves.
func WatermarkProbe(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	var raw float64
	var evidence []string

	if containsAny(ev.Prompt, watermarkMetaPhrases) {
		raw += 0.50
		evidence = append(evidence, "watermark_meta_phrase")
	}

	zwCount := strings.Count(ev.Prompt, string(zwj)) + strings.Count(ev.Prompt, string(zwnj))
	if zwCount >= 1 {
		raw += 0.35
		evidence = append(evidence, "zero_width_characters_present")
	}

	if _, ok := store.IsWatermarked(ev.AccountID); ok {
		raw += 0.05
		evidence = append(evidence, "account_watermarked")
	}

	if raw == 0 {
		return nil
	}

	confidence := clamp01(float64(len(snap.Events)) / 20)
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerWatermark,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}
