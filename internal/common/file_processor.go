package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"rjdctl/internal/errors"
	"rjdctl/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	return &FileProcessor{logger: logger}
}

// ReadBytes reads a whole file with proper error handling
func (fp *FileProcessor) ReadBytes(filename string) ([]byte, error) {
	if _, err := utils.ValidateInputFile(filename); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
			fmt.Sprintf("Invalid file %s", filename), err)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}

	return content, nil
}

// ReadText reads a plain-text input such as a job description. Other file
// types are read too, with a warning.
func (fp *FileProcessor) ReadText(filename string) (string, error) {
	if !utils.IsTextFile(filename) {
		fp.logger.Warn("File may not be a text file", "filename", filename)
	}

	content, err := fp.ReadBytes(filename)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename string, content []byte) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError(errors.ErrCodeFileNotWritable,
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	if err := os.WriteFile(filename, content, 0600); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotWritable,
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError(errors.ErrCodeFileNotWritable,
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}
