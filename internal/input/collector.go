// Package input holds the resume and job-description inputs of a session.
package input

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"rjdctl/internal/errors"
	"rjdctl/internal/types"
	"rjdctl/internal/utils"
)

// Source identifies how a resume reached the collector
type Source string

const (
	SourceBrowse Source = "browse"
	SourceDrop   Source = "drop"
	SourceWatch  Source = "watch"
)

// Inputs is a copy of the collector state
type Inputs struct {
	Resume         *types.SelectedResume
	JobDescription string
}

// Ready reports whether both inputs needed for analysis are present
func (in Inputs) Ready() bool {
	return in.Resume != nil && in.JobDescription != ""
}

// Collector accumulates the selected resume and job-description text.
// It performs no network I/O and is safe for concurrent use.
type Collector struct {
	mu             sync.RWMutex
	validator      *FileValidator
	logger         *errors.Logger
	resume         *types.SelectedResume
	jobDescription string
}

// NewCollector creates an empty collector
func NewCollector(validator *FileValidator, logger *errors.Logger) *Collector {
	return &Collector{validator: validator, logger: logger}
}

// Select replaces the resume with a file chosen in a file browser
func (c *Collector) Select(file types.SelectedResume) error {
	return c.accept(SourceBrowse, file)
}

// Drop replaces the resume with the first of the dropped files. Dropping
// nothing leaves the selection unchanged.
func (c *Collector) Drop(files ...types.SelectedResume) error {
	if len(files) == 0 {
		return nil
	}
	if len(files) > 1 {
		c.logger.Debug("Multiple files dropped, keeping the first", "count", len(files))
	}
	return c.accept(SourceDrop, files[0])
}

// SelectPath reads a resume from disk and selects it
func (c *Collector) SelectPath(source Source, path string) error {
	if _, err := utils.ValidateInputFile(path); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot use resume %s", path), err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("cannot read resume %s", path), err)
	}

	return c.accept(source, types.SelectedResume{Name: filepath.Base(path), Content: content})
}

// accept is the single transition every acquisition path ends in
func (c *Collector) accept(source Source, file types.SelectedResume) error {
	if c.validator != nil {
		if err := c.validator.Validate(file.Name, file.Content); err != nil {
			c.logger.LogError(err, "Resume rejected", "source", source)
			return err
		}
	}

	selected := &types.SelectedResume{
		Name:    file.Name,
		Content: append([]byte(nil), file.Content...),
	}

	c.mu.Lock()
	c.resume = selected
	c.mu.Unlock()

	c.logger.Info("Resume selected",
		"source", source,
		"filename", file.Name,
		"size", utils.FormatFileSize(int64(len(file.Content))))
	return nil
}

// SetJobDescription replaces the job-description text verbatim
func (c *Collector) SetJobDescription(text string) {
	c.mu.Lock()
	c.jobDescription = text
	c.mu.Unlock()
}

// Snapshot returns the current inputs
func (c *Collector) Snapshot() Inputs {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Inputs{Resume: c.resume, JobDescription: c.jobDescription}
}

// Reset clears both inputs
func (c *Collector) Reset() {
	c.mu.Lock()
	c.resume = nil
	c.jobDescription = ""
	c.mu.Unlock()
	c.logger.Debug("Inputs cleared")
}
