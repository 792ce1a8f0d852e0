package slots

import (
	"context"
	"sort"
	"time"
)

// Record is one stored slot-filling outcome.
type Record struct {
	UserID     string
	IntentType string
	Entities   map[string]string
	Timestamp  time.Time
}

// HistoryStore persists filling history. Implementations may fail freely;
// the filler treats every error as advisory.
type HistoryStore interface {
	RecordFilling(ctx context.Context, r Record) error
	RecentFillings(ctx context.Context, userID, intentType string, limit int) ([]Record, error)
}

// RecordFillingHistory stores the filled slots of res for userID.
// Failures are logged and dropped.
func (f *Filler) RecordFillingHistory(ctx context.Context, userID string, res *Result) {
	if f.history == nil || res == nil || userID == "" || len(res.Slots) == 0 {
		return
	}
	r := Record{
		UserID:     userID,
		IntentType: res.Intent,
		Entities:   cloneMap(res.Slots),
		Timestamp:  time.Now(),
	}
	if err := f.history.RecordFilling(ctx, r); err != nil {
		f.logger.Warn("record filling history failed", "user", userID, "intent", res.Intent, "error", err)
	}
}

// LearnUserPreference returns, per slot, the value userID chose most often
// for intentType. A value needs at least two occurrences to count.
func (f *Filler) LearnUserPreference(ctx context.Context, userID, intentType string) map[string]string {
	if f.history == nil || userID == "" {
		return nil
	}
	records, err := f.history.RecentFillings(ctx, userID, intentType, f.cfg.HistoryLimit)
	if err != nil {
		f.logger.Warn("load filling history failed", "user", userID, "intent", intentType, "error", err)
		return nil
	}

	counts := make(map[string]map[string]int)
	for _, r := range records {
		for slot, v := range r.Entities {
			if v == "" {
				continue
			}
			if counts[slot] == nil {
				counts[slot] = make(map[string]int)
			}
			counts[slot][v]++
		}
	}

	prefs := make(map[string]string)
	for slot, values := range counts {
		best, bestN := "", 0
		keys := make([]string, 0, len(values))
		for v := range values {
			keys = append(keys, v)
		}
		sort.Strings(keys)
		for _, v := range keys {
			if values[v] > bestN {
				best, bestN = v, values[v]
			}
		}
		if bestN >= minPreferenceCount {
			prefs[slot] = best
		}
	}
	if len(prefs) == 0 {
		return nil
	}
	return prefs
}

const minPreferenceCount = 2

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
