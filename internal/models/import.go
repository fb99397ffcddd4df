package models

import "encoding/xml"

// LineError is a rejected record in an import stream
type LineError struct {
	Line    int         `json:"line" xml:"line,attr"`
	Field   string      `json:"field" xml:"field"`
	Message string      `json:"message" xml:"message"`
	Value   interface{} `json:"value,omitempty" xml:"value,omitempty"`
}

// ImportReport summarizes a comment import
type ImportReport struct {
	XMLName    xml.Name    `json:"-" xml:"import"`
	Total      int         `json:"total" xml:"total"`
	Imported   int         `json:"imported" xml:"imported"`
	Failed     int         `json:"failed" xml:"failed"`
	DurationMs int64       `json:"duration_ms" xml:"duration_ms"`
	RowsPerSec float64     `json:"rows_per_sec" xml:"rows_per_sec"`
	Errors     []LineError `json:"errors,omitempty" xml:"error,omitempty"`
	Truncated  bool        `json:"errors_truncated,omitempty" xml:"errors_truncated,omitempty"`
}
