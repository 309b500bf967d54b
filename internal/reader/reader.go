// Package reader turns spreadsheet exports into header-less grids of raw cells.
// Detecting the header row is not its job.
package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

var (
	// ErrUnsupportedFormat is returned when the bytes are none of the known containers.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	// ErrEmptyWorkbook is returned when a container parses but holds no sheets.
	ErrEmptyWorkbook = errors.New("workbook has no sheets")
)

// Format is a spreadsheet container type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatHTML Format = "html"
	FormatCSV  Format = "csv"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

const sniffLen = 4096

// DetectFormat inspects the leading bytes, then the extension. Banks often
// serve HTML tables under an .xls name, so content wins over the extension.
func DetectFormat(data []byte, filename string) (Format, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS, nil
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	lower := bytes.ToLower(head)
	if bytes.Contains(lower, []byte("<table")) || bytes.Contains(lower, []byte("<html")) {
		return FormatHTML, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".htm", ".html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
}

// Reader parses any supported container.
type Reader struct{}

// New creates a Reader.
func New() *Reader {
	return &Reader{}
}

// Read detects the container and returns its sheets in declared order.
func (r *Reader) Read(ctx context.Context, filename string, data []byte) (*sheet.Workbook, error) {
	return Read(ctx, filename, data)
}

// Read detects the container and returns its sheets in declared order.
func Read(ctx context.Context, filename string, data []byte) (*sheet.Workbook, error) {
	log := logger.FromContext(ctx)

	format, err := DetectFormat(data, filename)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("filename", filename).Str("format", string(format)).Msg("Detected container format")

	var wb *sheet.Workbook
	switch format {
	case FormatXLSX:
		wb, err = readXLSX(data)
	case FormatXLS:
		wb, err = readXLS(data)
	case FormatHTML:
		wb, err = readHTML(data)
	case FormatCSV:
		wb, err = readCSV(data, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("Read: parsing %s as %s: %w", filename, format, err)
	}
	if len(wb.Sheets) == 0 {
		return nil, fmt.Errorf("Read: %s: %w", filename, ErrEmptyWorkbook)
	}
	return wb, nil
}
