package storage

import (
	"fmt"
	"strings"
)

// AllowedContentTypes lists the MIME types written by the export archive.
var AllowedContentTypes = map[string]bool{
	"application/x-ndjson": true,
	"application/json":     true,
	"text/plain":           true,
}

// ValidateContentType checks if the content type is allowed.
func ValidateContentType(contentType string) error {
	normalized := strings.Split(contentType, ";")[0]
	normalized = strings.TrimSpace(strings.ToLower(normalized))

	if !AllowedContentTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileName rejects empty names and names that would escape the folder.
func ValidateFileName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("file name is required")
	}
	if strings.ContainsAny(trimmed, `/\`) || strings.Contains(trimmed, "..") {
		return fmt.Errorf("file name %q is not allowed", name)
	}
	return nil
}
