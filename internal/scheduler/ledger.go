// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/ManuGH/presentd/internal/log"
	"github.com/ManuGH/presentd/internal/metrics"
	"github.com/ManuGH/presentd/internal/sessionstore"
)

const storeTimeout = 2 * time.Second

// persistedEntry is the stored layout: a JSON array of these objects.
type persistedEntry struct {
	SurveyID  string `json:"surveyId"`
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source"`
}

func encodeLedger(entries []LedgerEntry) ([]byte, error) {
	out := make([]persistedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, persistedEntry{
			SurveyID:  e.SurveyID,
			Timestamp: e.LastPresentedAt.UnixMilli(),
			Source:    e.LastSource.String(),
		})
	}
	return json.Marshal(out)
}

// decodeLedger parses a stored ledger. Entries without survey id or
// timestamp are skipped; when a survey appears twice the newest wins.
func decodeLedger(data []byte) (map[string]LedgerEntry, error) {
	var raw []persistedEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	ledger := make(map[string]LedgerEntry, len(raw))
	for _, p := range raw {
		if p.SurveyID == "" || p.Timestamp <= 0 {
			continue
		}
		e := LedgerEntry{
			SurveyID:        p.SurveyID,
			LastPresentedAt: time.UnixMilli(p.Timestamp),
			LastSource:      ParseSource(p.Source),
		}
		if prev, ok := ledger[p.SurveyID]; ok && prev.LastPresentedAt.After(e.LastPresentedAt) {
			continue
		}
		ledger[p.SurveyID] = e
	}
	return ledger, nil
}

// sortedLedger returns the ledger ordered by survey id.
func sortedLedger(ledger map[string]LedgerEntry) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(ledger))
	for _, e := range ledger {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SurveyID < out[j].SurveyID })
	return out
}

// gcLedger drops entries older than maxAge and returns how many were removed.
func gcLedger(ledger map[string]LedgerEntry, now time.Time, maxAge time.Duration) int {
	removed := 0
	for id, e := range ledger {
		if now.Sub(e.LastPresentedAt) > maxAge {
			delete(ledger, id)
			removed++
		}
	}
	return removed
}

// loadLedger rehydrates the ledger. Every failure degrades to an empty ledger.
func (s *Scheduler) loadLedger() map[string]LedgerEntry {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	data, err := s.store.Get(ctx, s.cfg.StoreKey)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return make(map[string]LedgerEntry)
	}
	if err != nil {
		metrics.IncSchedulerPersistFailure("load")
		s.logger.Warn().Err(err).Str(log.FieldStoreKey, s.cfg.StoreKey).Msg("ledger load failed, starting without history")
		return make(map[string]LedgerEntry)
	}

	ledger, err := decodeLedger(data)
	if err != nil {
		metrics.IncSchedulerPersistFailure("load")
		s.logger.Warn().Err(err).Str(log.FieldStoreKey, s.cfg.StoreKey).Msg("ledger document unreadable, starting without history")
		return make(map[string]LedgerEntry)
	}

	if dropped := gcLedger(ledger, s.clock.Now(), s.cfg.retention()); dropped > 0 {
		s.logger.Debug().Int("dropped", dropped).Msg("discarded expired ledger entries")
	}
	s.logger.Info().Int("entries", len(ledger)).Msg("ledger rehydrated")
	return ledger
}

// saveLedger persists a ledger snapshot. Failures are logged and counted only.
func (s *Scheduler) saveLedger(entries []LedgerEntry) {
	data, err := encodeLedger(entries)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err = s.store.Set(ctx, s.cfg.StoreKey, data, s.cfg.retention())
		cancel()
	}
	if err != nil {
		metrics.IncSchedulerPersistFailure("save")
		s.logger.Warn().Err(err).Str(log.FieldStoreKey, s.cfg.StoreKey).Msg("ledger persist failed")
	}
}
