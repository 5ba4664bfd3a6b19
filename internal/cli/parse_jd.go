package cli

import (
	"context"
	"fmt"
	"strings"

	"rjdctl/internal/common"
	"rjdctl/internal/errors"
	"rjdctl/internal/types"

	"github.com/spf13/cobra"
)

// parsedJobFormats are the formats a parsed job description can be rendered in
var parsedJobFormats = []string{"json", "text", "yaml"}

type parseJDOptions struct {
	common.CommandConfig
	Text string
}

var parseJDConfig parseJDOptions

var parseJDCmd = &cobra.Command{
	Use:   "parse-jd [job-description-file]",
	Short: "Send a job description through the service's parser",
	Long: `Post a job description to the service's job-description parser and print
the text it returns. This is what the service will see as the job description
when matching. The text comes from a file argument or --text.`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 1) == (parseJDConfig.Text != "") {
			return fmt.Errorf("provide either a job description file or --text")
		}
		cfg := getConfigFromContext(cmd.Context())
		if parseJDConfig.OutputFormat == "" {
			parseJDConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(parseJDConfig.OutputFormat,
			common.CompletableFormats(cfg.App.SupportedFormats, parsedJobFormats))
	},
	RunE: runParseJD,
}

func init() {
	parseJDCmd.Flags().StringVar(&parseJDConfig.Text, "text", "", "Job description text")
	addOutputFlags(parseJDCmd, &parseJDConfig.CommandConfig, parsedJobFormats)
}

func runParseJD(cmd *cobra.Command, args []string) error {
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
			return parseJDConfig.Text, nil
		}
		return common.NewFileProcessor(logger).ReadText(args[0])
	}

	logDetails := func(text string, cfg common.CommandConfig) {
		logger.Info("Starting job description parse",
			"text_chars", len(text),
			"output_format", cfg.OutputFormat)
	}

	parse := func(ctx context.Context, text string) (*types.ParsedJobDescription, error) {
		if strings.TrimSpace(text) == "" {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "job description is empty", nil)
		}
		return rt.service.ParseJobDescription(ctx, text)
	}

	output := common.NewOutputHandler(logger, rt.formatters)
	output.SetStdout(cmd.OutOrStdout())
	if err := common.RunServiceCommand(ctx, logger, output, parseJDConfig.CommandConfig, loadInput, parse, logDetails); err != nil {
		return fmt.Errorf("failed to parse job description: %w", err)
	}
	logger.Info("Job description parse completed successfully")
	return nil
}
