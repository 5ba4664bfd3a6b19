package cli

import (
	"fmt"
	"path/filepath"

	"rjdctl/internal/common"
	"rjdctl/internal/input"
	"rjdctl/internal/types"
	"rjdctl/internal/utils"

	"github.com/spf13/cobra"
)

// extractedFormats are the formats an extracted resume can be rendered in
var extractedFormats = []string{"json", "markdown", "text", "yaml"}

var extractConfig common.CommandConfig

var extractCmd = &cobra.Command{
	Use:   "extract [resume-file]",
	Short: "Extract the text of a resume",
	Long: `Upload a resume to the service's text extractor and print the text it
recovers. The file is checked locally with the same rules as a selected
resume before it is sent.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if extractConfig.OutputFormat == "" {
			extractConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(extractConfig.OutputFormat,
			common.CompletableFormats(cfg.App.SupportedFormats, extractedFormats))
	},
	RunE: runExtract,
}

func init() {
	addOutputFlags(extractCmd, &extractConfig, extractedFormats)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	validator := input.NewFileValidator(cfg.Input)
	loadInput := func() (types.SelectedResume, error) {
		content, err := common.NewFileProcessor(logger).ReadBytes(args[0])
		if err != nil {
			return types.SelectedResume{}, err
		}
		name := filepath.Base(args[0])
		if err := validator.Validate(name, content); err != nil {
			return types.SelectedResume{}, err
		}
		return types.SelectedResume{Name: name, Content: content}, nil
	}

	logDetails := func(resume types.SelectedResume, cfg common.CommandConfig) {
		logger.Info("Starting resume text extraction",
			"filename", resume.Name,
			"size", utils.FormatFileSize(int64(resume.Size())),
			"output_format", cfg.OutputFormat)
	}

	output := common.NewOutputHandler(logger, rt.formatters)
	output.SetStdout(cmd.OutOrStdout())
	if err := common.RunServiceCommand(ctx, logger, output, extractConfig, loadInput, rt.service.UploadResume, logDetails); err != nil {
		return fmt.Errorf("failed to extract resume text: %w", err)
	}
	logger.Info("Resume text extraction completed successfully")
	return nil
}
