package tools

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avramovic/golabot/internal/telemetry"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const (
	httpTimeout     = 30 * time.Second
	maxHTTPBody     = 1 << 20 // 1 MiB of response body returned to the model
	maxHTTPRedirect = 5
)

// HTTPInput is the input for the http_request tool.
type HTTPInput struct {
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url"`
	Query   map[string]string `json:"query,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// HTTPOutput is the output for the http_request tool. Binary response
// bodies are base64-encoded and flagged.
type HTTPOutput struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
	BodyBase64 bool              `json:"body_base64,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func registerHTTP(g *genkit.Genkit, reg *Registry) ai.ToolRef {
	client := &http.Client{
		Timeout: httpTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxHTTPRedirect {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return genkit.DefineTool(g, "http_request",
		"Make an HTTP request and return the status, headers and body. Use for APIs and raw pages. Body is truncated to 1MB.",
		func(ctx *ai.ToolContext, input HTTPInput) (HTTPOutput, error) {
			method := strings.ToUpper(strings.TrimSpace(input.Method))
			if method == "" {
				method = http.MethodGet
			}
			if input.URL == "" {
				return HTTPOutput{Error: reg.fail(ctx, "http_request", "url is required")}, nil
			}
			if !strings.HasPrefix(input.URL, "http://") && !strings.HasPrefix(input.URL, "https://") {
				return HTTPOutput{Error: reg.fail(ctx, "http_request", "url must be http or https")}, nil
			}

			var body io.Reader
			if input.Body != "" {
				body = strings.NewReader(input.Body)
			}
			req, err := http.NewRequestWithContext(ctx, method, input.URL, body)
			if err != nil {
				return HTTPOutput{Error: reg.fail(ctx, "http_request", err.Error())}, nil
			}
			if len(input.Query) > 0 {
				q := req.URL.Query()
				for k, v := range input.Query {
					q.Set(k, v)
				}
				req.URL.RawQuery = q.Encode()
			}
			for k, v := range input.Headers {
				req.Header.Set(k, v)
			}
			if req.Header.Get("User-Agent") == "" {
				req.Header.Set("User-Agent", "golabot/1.0")
			}

			resp, err := client.Do(req)
			if err != nil {
				return HTTPOutput{Error: reg.fail(ctx, "http_request", err.Error())}, nil
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBody))
			if err != nil {
				return HTTPOutput{
					StatusCode: resp.StatusCode,
					Error:      reg.fail(ctx, "http_request", "read body: "+err.Error()),
				}, nil
			}

			headers := map[string]string{}
			for k := range resp.Header {
				headers[k] = resp.Header.Get(k)
			}

			out := HTTPOutput{StatusCode: resp.StatusCode, Headers: headers}
			if utf8.Valid(data) {
				out.Body = telemetry.Redact(string(data))
			} else {
				out.Body = base64.StdEncoding.EncodeToString(data)
				out.BodyBase64 = true
			}
			return out, nil
		},
	)
}
