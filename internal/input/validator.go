package input

import (
	"bytes"
	"fmt"
	"slices"

	"rjdctl/internal/config"
	"rjdctl/internal/errors"
	"rjdctl/internal/utils"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// oleMagic starts every legacy .doc (OLE2 compound) file
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// FileValidator decides whether a file may become the selected resume.
// Every acquisition path (browse, drop, watch) goes through it.
type FileValidator struct {
	allowed       []string
	maxSize       int64
	verifyContent bool
}

// NewFileValidator builds a validator from the input configuration
func NewFileValidator(cfg config.InputConfig) *FileValidator {
	return &FileValidator{
		allowed:       cfg.AllowedExtensions,
		maxSize:       cfg.MaxFileSize,
		verifyContent: cfg.VerifyContent,
	}
}

// Validate checks extension, size and optionally that the bytes parse as the
// format the extension claims.
func (v *FileValidator) Validate(name string, content []byte) error {
	ext := utils.GetFileExtension(name)
	if len(v.allowed) > 0 && !slices.Contains(v.allowed, ext) {
		return errors.NewValidationError(errors.ErrCodeInvalidFileType,
			fmt.Sprintf("unsupported resume type %q", ext), nil).
			WithContext("filename", name).
			WithContext("allowed", v.allowed)
	}

	if len(content) == 0 {
		return errors.NewValidationError(errors.ErrCodeEmptyFile,
			fmt.Sprintf("resume file %s is empty", name), nil)
	}

	if v.maxSize > 0 && int64(len(content)) > v.maxSize {
		return errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("resume file is %s, limit is %s",
				utils.FormatFileSize(int64(len(content))), utils.FormatFileSize(v.maxSize)), nil).
			WithContext("filename", name)
	}

	if !v.verifyContent {
		return nil
	}

	var err error
	switch ext {
	case ".pdf":
		err = checkPDF(content)
	case ".docx":
		err = checkDOCX(content)
	case ".doc":
		if !bytes.HasPrefix(content, oleMagic) {
			err = fmt.Errorf("missing OLE2 header")
		}
	}
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFileType,
			fmt.Sprintf("resume file %s is not a readable %s document", name, ext), err).
			WithContext("filename", name)
	}
	return nil
}

func checkPDF(content []byte) (err error) {
	// the pdf parser panics on some truncated inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unreadable pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return err
	}
	if reader.NumPage() < 1 {
		return fmt.Errorf("pdf has no pages")
	}
	return nil
}

func checkDOCX(content []byte) error {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return err
	}
	return doc.Close()
}
