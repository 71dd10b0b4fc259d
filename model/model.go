// Package model holds the domain types shared across the dashboard client.
package model

import "time"

// AnnouncementMessage is a single corporate announcement pushed by the backend.
// Messages are immutable once received; arrival order is insertion order.
type AnnouncementMessage struct {
	Timestamp   time.Time `json:"timestamp"`
	Symbol      string    `json:"symbol,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Description string    `json:"description,omitempty"`
	Option      string    `json:"option,omitempty"`
	FileURL     string    `json:"file_url,omitempty"`
	ChatID      int64     `json:"chat_id"`
}

// FinancialMetric is one reported financial result row. Absent numeric fields
// mean the figure was not reported.
type FinancialMetric struct {
	StockSymbol string    `json:"stock_symbol"`
	Period      string    `json:"period"`
	Year        string    `json:"year"`
	Revenue     *float64  `json:"revenue,omitempty"`
	PBT         *float64  `json:"pbt,omitempty"`
	PAT         *float64  `json:"pat,omitempty"`
	TotalIncome *float64  `json:"total_income,omitempty"`
	OtherIncome *float64  `json:"other_income,omitempty"`
	EPS         *float64  `json:"eps,omitempty"`
	ReportedAt  time.Time `json:"reported_at"`
}

// AIAnalysisResult is one row derived from an uploaded document analysis.
type AIAnalysisResult struct {
	Period      string    `json:"period"`
	Year        string    `json:"year"`
	Revenue     *float64  `json:"revenue,omitempty"`
	PBT         *float64  `json:"pbt,omitempty"`
	PAT         *float64  `json:"pat,omitempty"`
	TotalIncome *float64  `json:"total_income,omitempty"`
	OtherIncome *float64  `json:"other_income,omitempty"`
	EPS         *float64  `json:"eps,omitempty"`
	AnalyzedAt  time.Time `json:"analyzed_at"`
}

// JobStatus is the lifecycle state of a background job. Completed and failed
// are terminal; a job never leaves a terminal state.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobProgress  JobStatus = "progress"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// BackgroundJob is the server-side view of a long-running operation.
type BackgroundJob struct {
	ID       string    `json:"job_id"`
	Kind     string    `json:"type"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Message  string    `json:"message"`
	Error    string    `json:"error,omitempty"`
}

// JobSubmission is the backend's acknowledgement of an asynchronous job start.
type JobSubmission struct {
	JobID         string `json:"job_id"`
	EstimatedTime string `json:"estimated_time"`
}

// ScheduledTaskEvent is a push frame describing a server-driven recurring task.
type ScheduledTaskEvent struct {
	Status   string `json:"status"`
	Task     string `json:"task"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

// ScheduledTaskRecord is the persisted snapshot of the last scheduled-task
// status. It is valid for display only while Date matches the current
// calendar date.
type ScheduledTaskRecord struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
	Time     string `json:"time"`
	Date     string `json:"date"`
}

// ConnectionState describes the realtime channel lifecycle.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateErrored      ConnectionState = "errored"
)

// Connected reports whether the state drives the positive status indicator.
func (s ConnectionState) Connected() bool {
	return s == StateConnected
}

// TradingSessionStatus mirrors GET /api/session_status. The trading session
// established by a TOTP check lasts until the next midnight.
type TradingSessionStatus struct {
	Active    bool   `json:"session_active"`
	ExpiresAt string `json:"expires_at"`
}

// TOTPResult is the backend's answer to a TOTP verification.
type TOTPResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	SessionInfo *struct {
		SID string `json:"sid"`
	} `json:"session_info,omitempty"`
}

// QuarterlyFigures is one quarter extracted by the document analyzer.
type QuarterlyFigures struct {
	Period                string   `json:"period"`
	YearEnded             string   `json:"year_ended"`
	RevenueFromOperations *float64 `json:"revenue_from_operations,omitempty"`
	ProfitBeforeTax       *float64 `json:"profit_before_tax,omitempty"`
	ProfitAfterTax        *float64 `json:"profit_after_tax,omitempty"`
	TotalIncome           *float64 `json:"total_income,omitempty"`
	OtherIncome           *float64 `json:"other_income,omitempty"`
	EarningsPerShare      *float64 `json:"earnings_per_share,omitempty"`
}

// AnalysisPayload is the result of a document upload to the analyzer.
type AnalysisPayload struct {
	Filename         string `json:"filename"`
	FinancialMetrics struct {
		QuarterlyData []QuarterlyFigures `json:"quarterly_data"`
	} `json:"financial_metrics"`
}

// OrderSheetRow is one row of the place-order sheet. The column set is
// dynamic, so rows keep both the ordered column names and the cell values.
type OrderSheetRow map[string]string
