// Package view projects store snapshots into display rows. Projections are
// pure: all side effects (publishing to the surface) happen in the caller.
package view

import (
	"fmt"
	"strings"

	"nse-alerts-dashboard/model"
)

// Selection identifies the single active view. Besides the reserved values
// below, any announcement option tag is a valid selection that filters the
// announcement table.
type Selection string

const (
	SelectionAll           Selection = "all"
	SelectionResultConcall Selection = "result_concall"
	SelectionAIAnalyzer    Selection = "ai_analyzer"
	SelectionPlaceOrder    Selection = "place_order"
)

// ShowsAnnouncements reports whether the selection displays the announcement
// table (either unfiltered or filtered by an option tag).
func (s Selection) ShowsAnnouncements() bool {
	switch s {
	case SelectionResultConcall, SelectionAIAnalyzer, SelectionPlaceOrder:
		return false
	}
	return true
}

// Filter is the active row filtering state for the announcement table.
type Filter struct {
	// Symbol is matched as a case-insensitive substring when non-empty.
	Symbol string
	// Option must equal the row's option tag unless it is "all" or empty.
	Option string
	// Limit truncates to the first N rows after filtering. 0 means unlimited.
	Limit int
}

// Placeholder messages for empty projections.
const (
	PlaceholderNoMessages  = "No messages yet. Waiting for corporate announcements..."
	PlaceholderFilterMiss  = "No messages match the filter."
	PlaceholderNoMetrics   = "No financial metrics data available yet..."
	PlaceholderNoAnalyses  = "Upload a PDF file to see financial analysis results..."
	PlaceholderNoSheetData = "No market data available"
)

// MessageRow is one rendered announcement table row.
type MessageRow struct {
	Timestamp string `json:"timestamp"`
	Symbol    string `json:"symbol"`
	Company   string `json:"company"`
	Message   string `json:"message"`
	Option    string `json:"option"`
	FileURL   string `json:"file_url"`
	ChatID    int64  `json:"chat_id"`
}

// MessageTable is the projected announcement view.
type MessageTable struct {
	Rows        []MessageRow `json:"rows"`
	Placeholder string       `json:"placeholder,omitempty"`
}

// ProjectMessages filters and truncates an announcement snapshot. Filters are
// conjunctive; store order (newest-first) is preserved.
func ProjectMessages(msgs []model.AnnouncementMessage, f Filter) MessageTable {
	symbolFilter := strings.ToLower(strings.TrimSpace(f.Symbol))

	var filtered []model.AnnouncementMessage
	for _, msg := range msgs {
		if symbolFilter != "" {
			if msg.Symbol == "" || !strings.Contains(strings.ToLower(msg.Symbol), symbolFilter) {
				continue
			}
		}
		if f.Option != "" && f.Option != string(SelectionAll) {
			if msg.Option != f.Option {
				continue
			}
		}
		filtered = append(filtered, msg)
	}

	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}

	if len(filtered) == 0 {
		placeholder := PlaceholderNoMessages
		if len(msgs) > 0 {
			placeholder = PlaceholderFilterMiss
		}
		return MessageTable{Placeholder: placeholder}
	}

	rows := make([]MessageRow, 0, len(filtered))
	for _, msg := range filtered {
		rows = append(rows, MessageRow{
			Timestamp: msg.Timestamp.Local().Format("02 Jan 2006 15:04:05"),
			Symbol:    msg.Symbol,
			Company:   valueOrDash(msg.CompanyName),
			Message:   valueOrDash(msg.Description),
			Option:    optionBadge(msg.Option),
			FileURL:   msg.FileURL,
			ChatID:    msg.ChatID,
		})
	}
	return MessageTable{Rows: rows}
}

// MetricRow is one rendered financial-metric table row.
type MetricRow struct {
	Symbol      string `json:"symbol"`
	Period      string `json:"period"`
	Year        string `json:"year"`
	Revenue     string `json:"revenue"`
	PBT         string `json:"pbt"`
	PAT         string `json:"pat"`
	TotalIncome string `json:"total_income"`
	OtherIncome string `json:"other_income"`
	EPS         string `json:"eps"`
	ReportedAt  string `json:"reported_at"`
}

// MetricTable is the projected financial-metrics view.
type MetricTable struct {
	Rows        []MetricRow `json:"rows"`
	Placeholder string      `json:"placeholder,omitempty"`
}

// ProjectMetrics truncates a metric snapshot to the row limit.
func ProjectMetrics(metrics []model.FinancialMetric, limit int) MetricTable {
	if limit > 0 && len(metrics) > limit {
		metrics = metrics[:limit]
	}
	if len(metrics) == 0 {
		return MetricTable{Placeholder: PlaceholderNoMetrics}
	}

	rows := make([]MetricRow, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, MetricRow{
			Symbol:      m.StockSymbol,
			Period:      m.Period,
			Year:        m.Year,
			Revenue:     formatAmount(m.Revenue),
			PBT:         formatAmount(m.PBT),
			PAT:         formatAmount(m.PAT),
			TotalIncome: formatAmount(m.TotalIncome),
			OtherIncome: formatAmount(m.OtherIncome),
			EPS:         formatEPS(m.EPS),
			ReportedAt:  m.ReportedAt.Local().Format("02 Jan 2006 15:04:05"),
		})
	}
	return MetricTable{Rows: rows}
}

// AnalysisRow is one rendered AI-analysis table row.
type AnalysisRow struct {
	Period      string `json:"period"`
	Year        string `json:"year"`
	Revenue     string `json:"revenue"`
	PBT         string `json:"pbt"`
	PAT         string `json:"pat"`
	TotalIncome string `json:"total_income"`
	OtherIncome string `json:"other_income"`
	EPS         string `json:"eps"`
	AnalyzedAt  string `json:"analyzed_at"`
}

// AnalysisTable is the projected AI-analysis view.
type AnalysisTable struct {
	Rows        []AnalysisRow `json:"rows"`
	Placeholder string        `json:"placeholder,omitempty"`
}

// ProjectAnalyses truncates an analysis snapshot to the row limit.
func ProjectAnalyses(results []model.AIAnalysisResult, limit int) AnalysisTable {
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		return AnalysisTable{Placeholder: PlaceholderNoAnalyses}
	}

	rows := make([]AnalysisRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, AnalysisRow{
			Period:      r.Period,
			Year:        r.Year,
			Revenue:     formatAmount(r.Revenue),
			PBT:         formatAmount(r.PBT),
			PAT:         formatAmount(r.PAT),
			TotalIncome: formatAmount(r.TotalIncome),
			OtherIncome: formatAmount(r.OtherIncome),
			EPS:         formatEPS(r.EPS),
			AnalyzedAt:  r.AnalyzedAt.Local().Format("02 Jan 2006 15:04:05"),
		})
	}
	return AnalysisTable{Rows: rows}
}

// SheetTable is the projected place-order sheet with its dynamic column set.
type SheetTable struct {
	Columns     []string              `json:"columns"`
	Rows        []model.OrderSheetRow `json:"rows"`
	Placeholder string                `json:"placeholder,omitempty"`
}

// ProjectSheet renders sheet rows against the given column order.
func ProjectSheet(columns []string, rows []model.OrderSheetRow) SheetTable {
	if len(rows) == 0 || len(columns) == 0 {
		return SheetTable{Placeholder: PlaceholderNoSheetData}
	}
	return SheetTable{Columns: columns, Rows: rows}
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func optionBadge(option string) string {
	if option == "" {
		return "-"
	}
	return strings.ToUpper(strings.ReplaceAll(option, "_", " "))
}

func formatAmount(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}

func formatEPS(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

// Selector tracks the single active view and publishes visibility on change.
type Selector struct {
	active Selection
}

// NewSelector starts on the "all" view.
func NewSelector() *Selector {
	return &Selector{active: SelectionAll}
}

// Active returns the current selection.
func (s *Selector) Active() Selection {
	return s.active
}

// Select activates a view and returns the visibility payload to publish:
// exactly one view is visible at a time.
func (s *Selector) Select(sel Selection) map[string]interface{} {
	s.active = sel
	return map[string]interface{}{
		"active":        string(sel),
		"announcements": sel.ShowsAnnouncements(),
		"metrics":       sel == SelectionResultConcall,
		"analyzer":      sel == SelectionAIAnalyzer,
		"place_order":   sel == SelectionPlaceOrder,
	}
}
