package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"nse-alerts-dashboard/model"
)

// FetchMessages loads the announcement list. A limit of 0 means unlimited.
func (c *Client) FetchMessages(ctx context.Context, limit int) ([]model.AnnouncementMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/messages?limit=%d", limit), nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Messages []model.AnnouncementMessage `json:"messages"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// FetchFinancialMetrics loads the full financial-metrics list.
func (c *Client) FetchFinancialMetrics(ctx context.Context) ([]model.FinancialMetric, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/financial_metrics", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Success bool                    `json:"success"`
		Metrics []model.FinancialMetric `json:"metrics"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("financial metrics fetch unsuccessful")
	}
	return out.Metrics, nil
}

// AnalyzeDocument uploads a PDF for analysis. Non-PDF files are rejected
// before any request is sent. On a non-200 the backend's structured `detail`
// message is surfaced.
func (c *Client) AnalyzeDocument(ctx context.Context, filename string, file io.Reader) (*model.AnalysisPayload, error) {
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		return nil, fmt.Errorf("only PDF files are supported, got %q", filename)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ai_analyze", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return nil, fmt.Errorf("analysis failed: %s", errResp.Detail)
		}
		return nil, fmt.Errorf("analysis failed with status %d", resp.StatusCode)
	}

	var payload model.AnalysisPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &payload, nil
}

// VerifyTOTP submits a 6-digit code to establish the trading session.
func (c *Client) VerifyTOTP(ctx context.Context, code string) (*model.TOTPResult, error) {
	body, err := json.Marshal(map[string]string{"totp_code": code})
	if err != nil {
		return nil, fmt.Errorf("marshal totp request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/verify_totp", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	var result model.TOTPResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		result.Success = false
	}
	return &result, nil
}

// SessionStatus reports whether a trading session is currently active.
func (c *Client) SessionStatus(ctx context.Context) (*model.TradingSessionStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/session_status", nil)
	if err != nil {
		return nil, err
	}

	var status model.TradingSessionStatus
	if err := c.doJSON(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// FetchOrderSheet loads the place-order sheet. The column set is dynamic;
// column order follows the first row of the raw payload.
func (c *Client) FetchOrderSheet(ctx context.Context) ([]string, []model.OrderSheetRow, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/place_order_sheet", nil)
	if err != nil {
		return nil, nil, err
	}

	var out struct {
		Success bool              `json:"success"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return nil, nil, err
	}
	if !out.Success || len(out.Data) == 0 {
		return nil, nil, nil
	}

	columns, err := columnOrder(out.Data[0])
	if err != nil {
		return nil, nil, fmt.Errorf("parse sheet columns: %w", err)
	}

	rows := make([]model.OrderSheetRow, 0, len(out.Data))
	for _, raw := range out.Data {
		var cells map[string]interface{}
		if err := json.Unmarshal(raw, &cells); err != nil {
			return nil, nil, fmt.Errorf("parse sheet row: %w", err)
		}
		row := make(model.OrderSheetRow, len(cells))
		for k, v := range cells {
			row[k] = fmt.Sprintf("%v", v)
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}

// columnOrder extracts object keys in their wire order, which plain
// map decoding would lose.
func columnOrder(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var columns []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", keyTok)
		}
		columns = append(columns, key)

		// Skip the value.
		var discard interface{}
		if err := dec.Decode(&discard); err != nil {
			return nil, err
		}
	}
	return columns, nil
}

// SubmitGetQuotes starts the asynchronous quote-fetch job.
func (c *Client) SubmitGetQuotes(ctx context.Context) (*model.JobSubmission, error) {
	return c.submitJob(ctx, http.MethodGet, "/api/get_quotes_updated")
}

// SubmitExecuteOrders starts the asynchronous order-execution job.
func (c *Client) SubmitExecuteOrders(ctx context.Context) (*model.JobSubmission, error) {
	return c.submitJob(ctx, http.MethodPost, "/api/execute_orders")
}

func (c *Client) submitJob(ctx context.Context, method, path string) (*model.JobSubmission, error) {
	req, err := c.newRequest(ctx, method, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Success       bool   `json:"success"`
		Message       string `json:"message"`
		JobID         string `json:"job_id"`
		EstimatedTime string `json:"estimated_time"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	// Non-200, success=false, or a missing job_id all mean the submission
	// did not start a job.
	if resp.StatusCode != http.StatusOK || !out.Success || out.JobID == "" {
		if out.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrSubmitRejected, out.Message)
		}
		return nil, fmt.Errorf("%w: status %d", ErrSubmitRejected, resp.StatusCode)
	}

	return &model.JobSubmission{JobID: out.JobID, EstimatedTime: out.EstimatedTime}, nil
}

// JobStatus fetches the current state of a background job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*model.BackgroundJob, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/job_status/"+jobID, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Success bool                 `json:"success"`
		Job     *model.BackgroundJob `json:"job"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	if !out.Success || out.Job == nil {
		return nil, fmt.Errorf("job status unavailable for %s", jobID)
	}
	return out.Job, nil
}
