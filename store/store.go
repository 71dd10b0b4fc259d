// Package store holds the in-memory ordered collections backing each
// dashboard view. Stores keep items newest-first, never deduplicate, and live
// only as long as the process.
package store

import (
	"sync"
	"time"

	"nse-alerts-dashboard/model"
)

// Stats is the derived summary recomputed on every announcement mutation.
type Stats struct {
	Total         int    `json:"total"`
	Today         int    `json:"today"`
	UniqueSymbols int    `json:"unique_symbols"`
	LastMessageAt string `json:"last_message_at"`
}

// Announcements is the ordered announcement store plus its derived
// unique-symbol set.
type Announcements struct {
	mu      sync.RWMutex
	items   []model.AnnouncementMessage
	symbols map[string]struct{}
}

// NewAnnouncements creates an empty announcement store.
func NewAnnouncements() *Announcements {
	return &Announcements{symbols: make(map[string]struct{})}
}

// PrependOne inserts a single announcement at the front and incrementally
// extends the unique-symbol set.
func (a *Announcements) PrependOne(msg model.AnnouncementMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.items = append([]model.AnnouncementMessage{msg}, a.items...)
	if msg.Symbol != "" {
		a.symbols[msg.Symbol] = struct{}{}
	}
}

// ReplaceAll swaps the whole store contents and rebuilds the symbol set from
// scratch, leaving no residue from previous contents.
func (a *Announcements) ReplaceAll(msgs []model.AnnouncementMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.items = make([]model.AnnouncementMessage, len(msgs))
	copy(a.items, msgs)

	a.symbols = make(map[string]struct{})
	for _, msg := range msgs {
		if msg.Symbol != "" {
			a.symbols[msg.Symbol] = struct{}{}
		}
	}
}

// Snapshot returns a copy of the current contents, newest-first.
func (a *Announcements) Snapshot() []model.AnnouncementMessage {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]model.AnnouncementMessage, len(a.items))
	copy(out, a.items)
	return out
}

// Stats computes the derived summary as of now.
func (a *Announcements) Stats() Stats {
	return a.statsAt(time.Now())
}

func (a *Announcements) statsAt(now time.Time) Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Stats{
		Total:         len(a.items),
		UniqueSymbols: len(a.symbols),
	}

	y, m, d := now.Date()
	for _, msg := range a.items {
		my, mm, md := msg.Timestamp.In(now.Location()).Date()
		if my == y && mm == m && md == d {
			s.Today++
		}
	}

	if len(a.items) > 0 {
		s.LastMessageAt = a.items[0].Timestamp.In(now.Location()).Format("15:04:05")
	}
	return s
}

// Metrics is the ordered financial-metric store. Batches are prepended as-is;
// duplicates against existing rows are possible and acceptable.
type Metrics struct {
	mu    sync.RWMutex
	items []model.FinancialMetric
}

// NewMetrics creates an empty metric store.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// PrependMany inserts a batch at the front, preserving the batch's own order.
func (m *Metrics) PrependMany(batch []model.FinancialMetric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(append([]model.FinancialMetric{}, batch...), m.items...)
}

// ReplaceAll swaps the whole store contents.
func (m *Metrics) ReplaceAll(metrics []model.FinancialMetric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make([]model.FinancialMetric, len(metrics))
	copy(m.items, metrics)
}

// Snapshot returns a copy of the current contents, newest-first.
func (m *Metrics) Snapshot() []model.FinancialMetric {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.FinancialMetric, len(m.items))
	copy(out, m.items)
	return out
}

// Len returns the current row count.
func (m *Metrics) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Analyses is the ordered store of AI-derived analysis rows.
type Analyses struct {
	mu    sync.RWMutex
	items []model.AIAnalysisResult
}

// NewAnalyses creates an empty analysis store.
func NewAnalyses() *Analyses {
	return &Analyses{}
}

// PrependMany inserts a batch at the front, preserving the batch's own order.
func (a *Analyses) PrependMany(batch []model.AIAnalysisResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(append([]model.AIAnalysisResult{}, batch...), a.items...)
}

// Snapshot returns a copy of the current contents, newest-first.
func (a *Analyses) Snapshot() []model.AIAnalysisResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.AIAnalysisResult, len(a.items))
	copy(out, a.items)
	return out
}
