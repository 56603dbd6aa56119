package client

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Response wraps a single HTTP exchange with the Blesta API.
//
// StatusCode 0 is reserved for network-level failures where no HTTP
// response was received at all; Raw then holds a diagnostic message
// instead of a body. Classification results (JSON, CSV, parsed rows)
// are computed lazily on first access and cached, so repeated access
// never re-parses the body.
type Response struct {
	StatusCode int
	Raw        string

	jsonOnce sync.Once
	parsed   any
	jsonOK   bool

	csvOnce sync.Once
	csvRows []map[string]string
}

// NewResponse builds a Response from a raw body and status code.
func NewResponse(raw string, statusCode int) *Response {
	return &Response{StatusCode: statusCode, Raw: raw}
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsJSON reports whether the body is valid JSON.
func (r *Response) IsJSON() bool {
	r.parseJSON()
	return r.jsonOK
}

// Data returns the value of the top-level "response" envelope field,
// or nil if the body is not a JSON object or the field is absent.
// Some endpoints legitimately return no payload, so a nil Data on a
// 2xx response is not an error.
func (r *Response) Data() any {
	r.parseJSON()
	if obj, ok := r.parsed.(map[string]any); ok {
		return obj["response"]
	}
	return nil
}

// IsCSV reports whether the body parses as usable CSV: not JSON, a
// header line containing at least one comma, and at least one data row.
func (r *Response) IsCSV() bool {
	r.parseCSV()
	return r.csvRows != nil
}

// CSVRows returns the body parsed as CSV, one map per data row keyed
// by header column. Returns nil when IsCSV is false. The result is
// cached after the first call; callers must not mutate the returned
// rows.
func (r *Response) CSVRows() []map[string]string {
	r.parseCSV()
	return r.csvRows
}

// Errors extracts error information from the response.
//
// It returns nil for a clean 2xx response. For non-2xx responses it
// returns the structured "errors" envelope field when present, or a
// synthesized mapping carrying the status code and a short message.
// Malformed bodies yield a synthesized mapping as well; Errors never
// panics on arbitrary input.
func (r *Response) Errors() map[string]any {
	if r.IsCSV() {
		if r.OK() {
			return nil
		}
		return map[string]any{
			"error":       fmt.Sprintf("CSV response with HTTP %d", r.StatusCode),
			"status_code": r.StatusCode,
		}
	}

	r.parseJSON()

	if !r.OK() {
		if obj, ok := r.parsed.(map[string]any); ok {
			if errs, present := obj["errors"]; present {
				if m, isMap := errs.(map[string]any); isMap {
					return m
				}
				return map[string]any{"errors": errs}
			}
		}
		if !r.jsonOK {
			return map[string]any{
				"error":       "non-JSON error response",
				"status_code": r.StatusCode,
			}
		}
		return map[string]any{
			"error":       fmt.Sprintf("HTTP %d with no error details", r.StatusCode),
			"status_code": r.StatusCode,
		}
	}

	if !r.jsonOK {
		return map[string]any{"error": "invalid JSON response"}
	}
	return nil
}

// parseJSON attempts a strict JSON parse of the body, at most once.
func (r *Response) parseJSON() {
	r.jsonOnce.Do(func() {
		var v any
		if err := json.Unmarshal([]byte(r.Raw), &v); err != nil {
			r.jsonOK = false
			return
		}
		r.parsed = v
		r.jsonOK = true
	})
}

// parseCSV attempts to read the body as header-plus-rows CSV, at most
// once. csvRows stays nil when the body is JSON, empty, headerless, or
// has no data rows.
func (r *Response) parseCSV() {
	r.csvOnce.Do(func() {
		if r.IsJSON() {
			return
		}
		body := strings.TrimSpace(r.Raw)
		if body == "" {
			return
		}
		lines := strings.Split(body, "\n")
		if len(lines) < 2 || !strings.Contains(lines[0], ",") {
			return
		}

		reader := csv.NewReader(strings.NewReader(body))
		reader.FieldsPerRecord = -1

		header, err := reader.Read()
		if err != nil || len(header) == 0 {
			return
		}

		var rows []map[string]string
		for {
			record, readErr := reader.Read()
			if readErr != nil {
				break
			}
			row := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(record) {
					row[col] = record[i]
				} else {
					row[col] = ""
				}
			}
			rows = append(rows, row)
		}
		if len(rows) > 0 {
			r.csvRows = rows
		}
	})
}

// String returns a short diagnostic representation, truncating long bodies.
func (r *Response) String() string {
	body := r.Raw
	if len(body) > 80 {
		body = body[:80] + "..."
	}
	return fmt.Sprintf("Response(status_code=%d, body=%q)", r.StatusCode, body)
}
