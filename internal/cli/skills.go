package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"rjdctl/internal/common"
	"rjdctl/internal/errors"

	"github.com/spf13/cobra"
)

// entityFormats are the formats extracted entities can be rendered in
var entityFormats = []string{"json", "text", "yaml"}

type skillsOptions struct {
	common.CommandConfig
	Text string
}

var skillsConfig skillsOptions

var skillsCmd = &cobra.Command{
	Use:   "skills [text-file]",
	Short: "Extract skill entities from free text",
	Long: `Send a job description or resume text to the entity extractor and print
the entities it finds. The text comes from a file argument or --text.`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 1) == (skillsConfig.Text != "") {
			return fmt.Errorf("provide either a text file or --text")
		}
		cfg := getConfigFromContext(cmd.Context())
		if skillsConfig.OutputFormat == "" {
			skillsConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(skillsConfig.OutputFormat,
			common.CompletableFormats(cfg.App.SupportedFormats, entityFormats))
	},
	RunE: runSkills,
}

func init() {
	skillsCmd.Flags().StringVar(&skillsConfig.Text, "text", "", "Text to extract skills from")
	addOutputFlags(skillsCmd, &skillsConfig.CommandConfig, entityFormats)
}

func runSkills(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	loadInput := func() (string, error) {
		if len(args) == 0 {
			return skillsConfig.Text, nil
		}
		return common.NewFileProcessor(logger).ReadText(args[0])
	}

	logDetails := func(text string, cfg common.CommandConfig) {
		logger.Info("Starting skill extraction",
			"text_chars", len(text),
			"output_format", cfg.OutputFormat)
	}

	extract := func(ctx context.Context, text string) (json.RawMessage, error) {
		if strings.TrimSpace(text) == "" {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "text to extract skills from is empty", nil)
		}
		return rt.service.ExtractSkills(ctx, text)
	}

	output := common.NewOutputHandler(logger, rt.formatters)
	output.SetStdout(cmd.OutOrStdout())
	if err := common.RunServiceCommand(ctx, logger, output, skillsConfig.CommandConfig, loadInput, extract, logDetails); err != nil {
		return fmt.Errorf("failed to extract skills: %w", err)
	}
	logger.Info("Skill extraction completed successfully")
	return nil
}
