package gcsuploader

import (
	"fmt"
	"path"
	"strings"
)

// ParseGCSURI splits "gs://bucket/path/to/file.xls" into bucket and object.
func ParseGCSURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/card.xls" → "card.xls"
func ExtractFilenameFromGCSURI(uri string) string {
	// Remove "gs://"
	trimmed := strings.TrimPrefix(uri, "gs://")

	// Remove bucket name
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}

// OutputObjectName returns the object name a converted workbook is stored
// under: the input's directory with a "converted/" prefix and an .xlsx extension.
func OutputObjectName(inputObject string) string {
	dir, file := path.Split(inputObject)
	base := strings.TrimSuffix(file, path.Ext(file))
	return path.Join("converted", dir, base+".xlsx")
}

// BuildGCSURI joins a bucket and object into a gs:// URI.
func BuildGCSURI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}
