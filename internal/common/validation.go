package common

import (
	"fmt"
	"slices"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// CompletableFormats returns the configured formats a renderer can produce,
// in configured order. An empty configuration allows every renderable format.
func CompletableFormats(configured, renderable []string) []string {
	if len(configured) == 0 {
		return slices.Clone(renderable)
	}

	formats := make([]string, 0, len(configured))
	for _, format := range configured {
		if slices.Contains(renderable, format) {
			formats = append(formats, format)
		}
	}
	return formats
}
