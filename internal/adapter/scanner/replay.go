package scanner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"proximityd/internal/domain"
)

// replayLine is one JSONL record in a capture file. delay_ms is the pause
// before this sighting is emitted.
type replayLine struct {
	MAC     string `json:"mac"`
	RSSI    int    `json:"rssi"`
	DelayMS int    `json:"delay_ms"`
}

// Replay feeds a recorded advertisement capture back through the engine.
// Useful for development machines without a radio and for reproducing
// field behavior from captures.
type Replay struct {
	path string
	log  *slog.Logger
}

// NewReplay creates a replay source for the given capture file.
func NewReplay(path string, log *slog.Logger) *Replay {
	return &Replay{path: path, log: log}
}

// Run emits every record in order, honoring per-record delays. Blank lines
// and lines starting with # are skipped; malformed records are logged and
// skipped so one bad line does not kill a long capture.
func (r *Replay) Run(ctx context.Context, sink func(domain.Observation)) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	r.log.Info("replaying capture", "path", r.path)

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var rec replayLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			r.log.Warn("skipping malformed capture line", "line", lineNo, "error", err)
			continue
		}

		if rec.DelayMS > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Duration(rec.DelayMS) * time.Millisecond):
			}
		} else if ctx.Err() != nil {
			return nil
		}

		sink(domain.Observation{MAC: rec.MAC, RSSI: rec.RSSI, At: time.Now()})
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read capture: %w", err)
	}

	r.log.Info("capture replay finished", "path", r.path, "lines", lineNo)
	return nil
}
