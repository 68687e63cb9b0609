package extract

import (
	"fmt"
	"log/slog"

	"github.com/ledgerline/receipt-recon/internal/common"
)

// NewFromConfig selects the OCR provider named by configuration. Alternate
// providers register here behind the same TextExtractor contract.
func NewFromConfig(cfg common.OCRConfig, logger *slog.Logger) (TextExtractor, error) {
	switch cfg.Provider {
	case ocrwebProvider:
		return NewOCRWebExtractor(OCRWebConfig{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Timeout:  cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown ocr provider %q", cfg.Provider)
	}
}
