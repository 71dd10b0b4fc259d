package handlers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"nse-alerts-dashboard/jobs"
	"nse-alerts-dashboard/model"
	"nse-alerts-dashboard/notify"
	"nse-alerts-dashboard/realtime"
	"nse-alerts-dashboard/schedtask"
	"nse-alerts-dashboard/store"
)

// Renderer re-publishes the current projection of a store after it changes.
type Renderer interface {
	RenderMessages()
	RenderMetrics()
	RenderAnalyses()
}

// Dashboard holds the domain components the push handlers act on.
type Dashboard struct {
	messages *store.Announcements
	metrics  *store.Metrics
	analyses *store.Analyses
	tracker  *jobs.Tracker
	recorder *schedtask.Recorder
	notifier *notify.Notifier
	renderer Renderer
	surface  realtime.Surface
	now      func() time.Time
}

// NewDashboard creates the push-frame handler set.
func NewDashboard(messages *store.Announcements, metrics *store.Metrics, analyses *store.Analyses, tracker *jobs.Tracker, recorder *schedtask.Recorder, notifier *notify.Notifier, renderer Renderer, surface realtime.Surface) *Dashboard {
	return &Dashboard{
		messages: messages,
		metrics:  metrics,
		analyses: analyses,
		tracker:  tracker,
		recorder: recorder,
		notifier: notifier,
		renderer: renderer,
		surface:  surface,
		now:      time.Now,
	}
}

// Register installs every dashboard route on the dispatcher.
func (h *Dashboard) Register(d *Dispatcher) {
	d.Register(TagNewMessage, h.handleNewMessage)
	d.Register(TagMessagesList, h.handleMessagesList)
	d.Register(TagFinancialMetrics, h.handleFinancialMetrics)
	d.Register(TagAIAnalysisStatus, h.handleAnalysisStatus)
	d.Register(TagAIAnalysisComplete, h.handleAnalysisComplete)
	d.Register(TagScheduledTask, h.handleScheduledTask)
	d.Register(TagJobCompleted, h.handleJobCompleted)
	d.Register(TagJobFailed, h.handleJobFailed)
}

func (h *Dashboard) handleNewMessage(ctx context.Context, frame json.RawMessage) {
	var body struct {
		Message model.AnnouncementMessage `json:"message"`
	}
	if err := json.Unmarshal(frame, &body); err != nil {
		log.Printf("Failed to decode new_message frame: %v", err)
		return
	}

	h.messages.PrependOne(body.Message)
	h.renderer.RenderMessages()
}

func (h *Dashboard) handleMessagesList(ctx context.Context, frame json.RawMessage) {
	var body struct {
		Messages []model.AnnouncementMessage `json:"messages"`
	}
	if err := json.Unmarshal(frame, &body); err != nil {
		log.Printf("Failed to decode messages_list frame: %v", err)
		return
	}

	h.messages.ReplaceAll(body.Messages)
	h.renderer.RenderMessages()
}

func (h *Dashboard) handleFinancialMetrics(ctx context.Context, frame json.RawMessage) {
	var body struct {
		Data struct {
			Metrics []model.FinancialMetric `json:"metrics"`
		} `json:"data"`
	}
	if err := json.Unmarshal(frame, &body); err != nil {
		log.Printf("Failed to decode financial_metrics frame: %v", err)
		return
	}
	if len(body.Data.Metrics) == 0 {
		return
	}

	h.metrics.PrependMany(body.Data.Metrics)
	h.renderer.RenderMetrics()
}

func (h *Dashboard) handleAnalysisStatus(ctx context.Context, frame json.RawMessage) {
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(frame, &body); err != nil {
		log.Printf("Failed to decode ai_analysis_status frame: %v", err)
		return
	}

	h.surface.Publish(realtime.EventAnalysisStatus, map[string]string{
		"level":   string(notify.Classify(body.Status)),
		"message": body.Message,
	})
}

func (h *Dashboard) handleAnalysisComplete(ctx context.Context, frame json.RawMessage) {
	var body struct {
		Data model.AnalysisPayload `json:"data"`
	}
	if err := json.Unmarshal(frame, &body); err != nil {
		log.Printf("Failed to decode ai_analysis_complete frame: %v", err)
		return
	}

	h.ApplyAnalysis(body.Data)
}

// ApplyAnalysis folds an analyzer result into the analysis store. Both the
// push channel and the direct-upload response deliver the same payload shape.
func (h *Dashboard) ApplyAnalysis(payload model.AnalysisPayload) {
	quarters := payload.FinancialMetrics.QuarterlyData
	if len(quarters) == 0 {
		h.surface.Publish(realtime.EventAnalysisStatus, map[string]string{
			"level":   string(notify.CategoryWarning),
			"message": "No quarterly data found in " + payload.Filename,
		})
		return
	}

	now := h.now()
	batch := make([]model.AIAnalysisResult, 0, len(quarters))
	for _, q := range quarters {
		batch = append(batch, model.AIAnalysisResult{
			Period:      q.Period,
			Year:        q.YearEnded,
			Revenue:     q.RevenueFromOperations,
			PBT:         q.ProfitBeforeTax,
			PAT:         q.ProfitAfterTax,
			TotalIncome: q.TotalIncome,
			OtherIncome: q.OtherIncome,
			EPS:         q.EarningsPerShare,
			AnalyzedAt:  now,
		})
	}

	h.analyses.PrependMany(batch)
	h.renderer.RenderAnalyses()
	h.surface.Publish(realtime.EventAnalysisStatus, map[string]string{
		"level":   string(notify.CategorySuccess),
		"message": "Analysis complete: " + payload.Filename,
	})
}

func (h *Dashboard) handleScheduledTask(ctx context.Context, frame json.RawMessage) {
	var ev model.ScheduledTaskEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		log.Printf("Failed to decode scheduled_task frame: %v", err)
		return
	}

	h.recorder.HandleEvent(ctx, ev)
}

func (h *Dashboard) handleJobCompleted(ctx context.Context, frame json.RawMessage) {
	var body struct {
		Job model.BackgroundJob `json:"job"`
	}
	if err := json.Unmarshal(frame, &body); err != nil {
		log.Printf("Failed to decode job_completed frame: %v", err)
		return
	}

	h.tracker.HandleCompleted(body.Job)
}

func (h *Dashboard) handleJobFailed(ctx context.Context, frame json.RawMessage) {
	var body struct {
		Job model.BackgroundJob `json:"job"`
	}
	if err := json.Unmarshal(frame, &body); err != nil {
		log.Printf("Failed to decode job_failed frame: %v", err)
		return
	}

	h.tracker.HandleFailed(body.Job)
}
