package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const ocrwebProvider = "ocrweb"

// OCRWebExtractor calls a hosted OCR HTTP service: POST the document bytes,
// receive recognized text as JSON. It is the one concrete provider that
// ships by default.
type OCRWebExtractor struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

type OCRWebConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

func NewOCRWebExtractor(cfg OCRWebConfig, logger *slog.Logger) *OCRWebExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &OCRWebExtractor{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type ocrwebResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (x *OCRWebExtractor) Extract(ctx context.Context, data []byte, filename string) (TextExtractionResult, error) {
	reqID := uuid.New().String()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.endpoint, bytes.NewReader(data))
	if err != nil {
		return TextExtractionResult{Provider: ocrwebProvider},
			&ExtractionError{Provider: ocrwebProvider, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Filename", filename)
	if x.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+x.apiKey)
	}

	x.logger.Info("ocr.http.request",
		"req_id", reqID,
		"filename", filename,
		"content_length", len(data),
	)

	resp, err := x.client.Do(req)
	if err != nil {
		x.logger.Error("ocr.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return TextExtractionResult{Provider: ocrwebProvider},
			&ExtractionError{Provider: ocrwebProvider, Message: "send request", Err: err}
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			x.logger.Warn("ocr.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	x.logger.Info("ocr.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	var out ocrwebResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return TextExtractionResult{Provider: ocrwebProvider},
			&ExtractionError{Provider: ocrwebProvider, Message: fmt.Sprintf("decode response (status %d)", resp.StatusCode), Err: err}
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return TextExtractionResult{Provider: ocrwebProvider},
			&ExtractionError{Provider: ocrwebProvider, Message: msg}
	}

	return TextExtractionResult{
		Provider: ocrwebProvider,
		Text:     out.Text,
		Duration: time.Since(start),
	}, nil
}
