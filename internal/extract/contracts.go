package extract

import (
	"context"
	"fmt"
	"time"
)

// TextExtractor is Stage 1: document bytes -> recognized text.
// Implementations wrap one external OCR provider; callers own any retry
// policy. An empty Text with a nil error is a valid result.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, filename string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Provider string
	Text     string
	Duration time.Duration
}

// ExtractionError reports a provider failure (network, auth, quota).
// It is fatal to the current processing attempt.
type ExtractionError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ocr provider %s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("ocr provider %s: %s", e.Provider, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
