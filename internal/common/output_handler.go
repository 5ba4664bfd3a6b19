package common

import (
	"fmt"
	"io"
	"os"

	"rjdctl/internal/errors"
	"rjdctl/internal/formatters"
)

// CommandConfig holds common configuration for commands
type CommandConfig struct {
	OutputFile   string
	OutputFormat string
}

// OutputHandler handles formatting and writing output
type OutputHandler struct {
	fileProcessor *FileProcessor
	registry      *formatters.FormatterRegistry
	logger        *errors.Logger
	stdout        io.Writer
}

// NewOutputHandler creates a new output handler. A nil registry uses the
// default formatters.
func NewOutputHandler(logger *errors.Logger, registry *formatters.FormatterRegistry) *OutputHandler {
	if registry == nil {
		registry = formatters.NewFormatterRegistry()
	}
	return &OutputHandler{
		fileProcessor: NewFileProcessor(logger),
		registry:      registry,
		logger:        logger,
		stdout:        os.Stdout,
	}
}

// SetStdout redirects output that has no target file
func (oh *OutputHandler) SetStdout(w io.Writer) {
	oh.stdout = w
}

// HandleOutput formats data and writes it to the specified output
func (oh *OutputHandler) HandleOutput(data any, config CommandConfig) error {
	if err := oh.fileProcessor.ValidateOutputFile(config.OutputFile); err != nil {
		return err
	}

	output, err := oh.registry.Format(data, config.OutputFormat)
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Failed to format output as %s", config.OutputFormat), err)
	}

	if config.OutputFile == "" {
		_, err := io.WriteString(oh.stdout, output)
		return err
	}

	if err := oh.fileProcessor.WriteFile(config.OutputFile, []byte(output)); err != nil {
		return err
	}
	oh.logger.Info("Output written successfully",
		"file", config.OutputFile, "format", config.OutputFormat)
	return nil
}

// GetSupportedFormats returns all supported output formats
func (oh *OutputHandler) GetSupportedFormats() []string {
	return oh.registry.GetSupportedFormats()
}
