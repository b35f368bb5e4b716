package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tradeengine/internal/bot"
)

// json is the webhook path's codec. Alert bursts from the scanner are
// the hottest JSON traffic this process handles, so this path uses
// jsoniter's compatible config instead of encoding/json.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// alertNameFields and symbolFields and timestampFields are the
// fallback field-name lists the inbound webhook recognizes (§6,
// Inbound webhook), tried in order against whatever shape the
// scanner actually sends.
var (
	alertNameFields = []string{"scan_name", "trigger_name", "scan", "alert", "alert_name", "name"}
	symbolFields    = []string{"stocks", "symbols", "stocks[]", "symbol", "stock", "tradingsymbol"}
	timestampFields = []string{"triggered_at", "time", "timestamp", "datetime"}
)

// WebhookDispatcher is the surface WebhookHandler depends on, to keep
// this package free of a direct import cycle on the engine's full
// dependency graph.
type WebhookDispatcher interface {
	DispatchAlert(ctx context.Context, rawAlertName string, rawSymbols []string, alertTime time.Time) bot.AlertResult
}

// WebhookHandler accepts the scanner's alert webhook (§6) and runs it
// through the Alert Dispatcher.
type WebhookHandler struct {
	engine WebhookDispatcher
}

func NewWebhookHandler(engine WebhookDispatcher) *WebhookHandler {
	return &WebhookHandler{engine: engine}
}

// webhookResultRow mirrors §6's response shape for one symbol.
type webhookResultRow struct {
	Symbol  string  `json:"symbol"`
	Status  string  `json:"status"`
	Reason  string  `json:"reason,omitempty"`
	OrderID string  `json:"order_id,omitempty"`
	TradeID string  `json:"trade_id,omitempty"`
	Qty     int     `json:"qty,omitempty"`
	Side    string  `json:"side,omitempty"`
	Product string  `json:"product,omitempty"`
	LTP     float64 `json:"ltp,omitempty"`
}

type webhookResponse struct {
	OK      bool                `json:"ok"`
	Alert   string              `json:"alert"`
	Symbols []string            `json:"symbols"`
	Result  []webhookResultRow  `json:"result"`
}

// Handle accepts one scan-alert webhook. Content-type is sniffed in
// order: JSON, then form-urlencoded, then raw JSON text in the body
// (§6).
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	fields, err := parseWebhookBody(r)
	if err != nil {
		respondWithJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	alertName := firstField(fields, alertNameFields)
	symbols := extractSymbols(fields)
	alertTime := parseTimestamp(firstField(fields, timestampFields))

	result := h.engine.DispatchAlert(r.Context(), alertName, symbols, alertTime)

	resp := webhookResponse{OK: result.OK, Alert: result.Alert, Symbols: result.Symbols}
	for _, row := range result.Result {
		resp.Result = append(resp.Result, webhookResultRow{
			Symbol:  row.Symbol,
			Status:  row.Status,
			Reason:  row.Reason,
			OrderID: row.OrderID,
			TradeID: row.TradeID,
			Qty:     row.Qty,
			Side:    row.Side,
			Product: row.Product,
			LTP:     row.LTP,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// parseWebhookBody sniffs content-type and returns a flat
// field-name -> raw-value(s) map covering both JSON and
// form-urlencoded shapes.
func parseWebhookBody(r *http.Request) (map[string][]string, error) {
	contentType := r.Header.Get("Content-Type")

	switch {
	case strings.Contains(contentType, "application/json"):
		return parseJSONFields(r)
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return map[string][]string(r.PostForm), nil
	default:
		return parseJSONFields(r)
	}
}

func parseJSONFields(r *http.Request) (map[string][]string, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(raw))
	for k, v := range raw {
		out[k] = flattenJSONValue(v)
	}
	return out, nil
}

func flattenJSONValue(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case float64:
		return []string{strconv.FormatFloat(val, 'f', -1, 64)}
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, flattenJSONValue(item)...)
		}
		return out
	case nil:
		return nil
	default:
		return []string{}
	}
}

func firstField(fields map[string][]string, candidates []string) string {
	for _, name := range candidates {
		if vals, ok := fields[name]; ok && len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	return ""
}

// extractSymbols reads symbols from the first recognized field, its
// indexed form ("stocks[0]", "stocks[1]", ...), or splits a
// comma/newline-separated string or a pythonic-list string
// ("['SBIN', 'TCS']").
func extractSymbols(fields map[string][]string) []string {
	for _, name := range symbolFields {
		if vals, ok := fields[name]; ok && len(vals) > 0 {
			return splitSymbolValues(vals)
		}
	}

	var indexed []string
	for i := 0; ; i++ {
		key := "stocks[" + strconv.Itoa(i) + "]"
		vals, ok := fields[key]
		if !ok || len(vals) == 0 {
			break
		}
		indexed = append(indexed, vals...)
	}
	return indexed
}

func splitSymbolValues(vals []string) []string {
	if len(vals) > 1 {
		return vals
	}
	raw := vals[0]
	raw = strings.Trim(raw, "[]")
	raw = strings.ReplaceAll(raw, "'", "")
	raw = strings.ReplaceAll(raw, `"`, "")

	var parts []string
	for _, sep := range []string{",", "\n"} {
		if strings.Contains(raw, sep) {
			parts = strings.Split(raw, sep)
			break
		}
	}
	if parts == nil {
		parts = []string{raw}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(ts, 0)
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Now()
}

func respondWithJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
