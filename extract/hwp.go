package extract

import "context"

// HWPConverter converts HWP/HWPX bytes to a PDF byte stream via a platform
// utility (e.g. a LibreOffice or hwp5odt-based conversion service). No such
// converter exists in-process; this interface lets one be wired into an
// Extractor without extractHWP needing to know where it came from, per
// spec.md §4.1's "convert to PDF via a platform utility if available, else
// plain text" rule.
type HWPConverter interface {
	ConvertToPDF(ctx context.Context, data []byte) ([]byte, error)
}

func extractHWP(ctx context.Context, conv HWPConverter, source string, data []byte) ([]PageRecord, error) {
	if conv != nil {
		pdfData, err := conv.ConvertToPDF(ctx, data)
		if err == nil {
			return extractPDF(source, pdfData)
		}
	}

	text, err := decodeBytes(data)
	if err != nil {
		return nil, err
	}
	return []PageRecord{{Source: source, Page: 1, Content: text}}, nil
}
