// Package sink implements the enforcement-action and indicator-bundle
// output adapters: JSON-lines appended to files, routed by action type,
// plus an always-on audit log. Mirrors the Sink abstraction the analytics
// pipeline this codebase grew out of uses for its own batched writers.
package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gatewatch/gatewatch/events"
	"github.com/rs/zerolog"
)

// FileSink appends JSON lines to a fixed set of output files, one per
// action-type routing bucket, plus a single audit log that receives every
// dispatched action unconditionally.
type FileSink struct {
	mu  sync.Mutex
	dir string
	log zerolog.Logger

	enforcement *os.File
	rateLimits  *os.File
	analystQ    *os.File
	iocBundles  *os.File
	audit       *os.File
}

// NewFileSink opens (creating if necessary) the sink's output files under
// dir.
func NewFileSink(dir string, log zerolog.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	open := func(name string) (*os.File, error) {
		return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	}

	enforcement, err := open("enforcement_actions.jsonl")
	if err != nil {
		return nil, err
	}
	rateLimits, err := open("rate_limit_commands.jsonl")
	if err != nil {
		return nil, err
	}
	analystQ, err := open("analyst_queue.jsonl")
	if err != nil {
		return nil, err
	}
	iocBundles, err := open("ioc_bundles.jsonl")
	if err != nil {
		return nil, err
	}
	audit, err := open("audit_log.jsonl")
	if err != nil {
		return nil, err
	}

	return &FileSink{
		dir: dir, log: log,
		enforcement: enforcement, rateLimits: rateLimits,
		analystQ: analystQ, iocBundles: iocBundles, audit: audit,
	}, nil
}

// WriteAction routes action to the file matching its type and always
// appends it to the audit log.
func (s *FileSink) WriteAction(action events.EnforcementAction) error {
	line, err := json.Marshal(action)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.target(action.ActionType)
	if err := appendLine(target, line); err != nil {
		s.log.Error().Err(err).Str("action_type", string(action.ActionType)).Msg("failed to write enforcement action")
		return err
	}
	if err := appendLine(s.audit, line); err != nil {
		s.log.Error().Err(err).Msg("failed to write audit log entry")
		return err
	}
	return nil
}

func (s *FileSink) target(kind events.ActionKind) *os.File {
	switch kind {
	case events.ActionSuspendAccount, events.ActionClusterTakedown:
		return s.enforcement
	case events.ActionRateLimit:
		return s.rateLimits
	default:
		return s.analystQ
	}
}

// WriteIndicatorBundle appends bundle to the IOC bundle output file.
func (s *FileSink) WriteIndicatorBundle(bundle events.IndicatorBundle) error {
	line, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLine(s.iocBundles, line)
}

func appendLine(f *os.File, line []byte) error {
	line = append(line, '\n')
	_, err := f.Write(line)
	return err
}

// Close flushes and closes every underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range []*os.File{s.enforcement, s.rateLimits, s.analystQ, s.iocBundles, s.audit} {
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
