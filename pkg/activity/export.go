package activity

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportFormat selects the export encoding
type ExportFormat string

const (
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatNDJSON ExportFormat = "ndjson"
)

// utf8BOM lets spreadsheet tools detect UTF-8 in CSV downloads
const utf8BOM = "\ufeff"

var csvHeader = []string{
	"Time",
	"Username",
	"Activity Type",
	"Description",
	"IP Address",
	"User Agent",
	"Details",
}

// writeCSV writes entries as CSV prefixed with a UTF-8 byte order mark
func writeCSV(w io.Writer, entries []*Entry) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range entries {
		details := ""
		if e.Metadata != nil {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata for activity %d: %w", e.ID, err)
			}
			details = string(b)
		}

		row := []string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.Username,
			string(e.Type),
			e.Description,
			e.IPAddress,
			e.UserAgent,
			details,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// writeNDJSON writes one JSON object per line
func writeNDJSON(w io.Writer, entries []*Entry) error {
	encoder := json.NewEncoder(w)
	for _, e := range entries {
		if err := encoder.Encode(e); err != nil {
			return fmt.Errorf("failed to encode activity %d: %w", e.ID, err)
		}
	}
	return nil
}
