// Package ingest provides the JSONL event-source adapter: a thin external
// collaborator that tails or replays a newline-delimited JSON file of
// events and feeds them to the core's ingest entrypoint over a channel,
// mirroring the batching/fan-out channel pattern this codebase's analytics
// pipeline already uses for its own event intake.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/gatewatch/gatewatch/events"
	"github.com/rs/zerolog"
)

// Source tails a JSONL file, parsing one events.Event per line and
// publishing it on Events. Malformed lines are logged and skipped rather
// than aborting the whole replay.
type Source struct {
	path string
	log  zerolog.Logger

	Events chan events.Event
}

// NewSource builds a Source reading from path with a reasonably sized
// output buffer.
func NewSource(path string, log zerolog.Logger) *Source {
	return &Source{path: path, log: log, Events: make(chan events.Event, 1024)}
}

// Run reads path line by line until EOF (replay mode) or ctx is
// cancelled. It does not poll for file growth; a tailing deployment is
// expected to rotate Source per file rather than share one across files.
func (s *Source) Run(ctx context.Context) error {
	defer close(s.Events)

	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.emit(line)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (s *Source) emit(line []byte) {
	var ev events.Event
	if err := json.Unmarshal(line, &ev); err != nil {
		s.log.Warn().Err(err).Msg("skipping malformed event line")
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.Events <- ev
}
