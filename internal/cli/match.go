package cli

import (
	"encoding/json"
	"fmt"

	"rjdctl/internal/common"
	"rjdctl/internal/errors"
	"rjdctl/internal/formatters"
	"rjdctl/internal/input"
	"rjdctl/internal/workflow"

	"github.com/spf13/cobra"
)

type matchOptions struct {
	common.CommandConfig
	delivery deliveryOptions

	ResumePath   string
	JDPath       string
	JDText       string
	Report       bool
	SaveAnalysis string
}

var matchConfig matchOptions

var matchCmd = &cobra.Command{
	Use:   "match --resume <file> (--jd <file> | --jd-text <text>)",
	Short: "Match a resume against a job description",
	Long: `Submit a resume and a job description for analysis and print the match
result: overall match, category scores, strengths, missing skills,
recommendations and the skill comparison table.

With --report a PDF report is generated from the match result. --download
saves the report locally and --archive uploads it to the configured bucket;
both imply --report.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if matchConfig.OutputFormat == "" {
			matchConfig.OutputFormat = cfg.App.DefaultFormat
		}
		if matchConfig.delivery.wanted() {
			matchConfig.Report = true
		}
		return common.ValidateOutputFormat(matchConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runMatch,
}

func init() {
	flags := matchCmd.Flags()
	flags.StringVar(&matchConfig.ResumePath, "resume", "", "Resume file (.pdf, .doc, .docx)")
	flags.StringVar(&matchConfig.JDPath, "jd", "", "Job description text file")
	flags.StringVar(&matchConfig.JDText, "jd-text", "", "Job description text")
	flags.BoolVar(&matchConfig.Report, "report", false, "Generate a PDF report from the match result")
	flags.StringVar(&matchConfig.SaveAnalysis, "save-analysis", "", "Write the raw analysis result as JSON for 'rjdctl report'")
	addDeliveryFlags(matchCmd, &matchConfig.delivery)
	addOutputFlags(matchCmd, &matchConfig.CommandConfig, formatters.NewFormatterRegistry().GetSupportedFormats())

	_ = matchCmd.MarkFlagRequired("resume")
	matchCmd.MarkFlagsMutuallyExclusive("jd", "jd-text")
	matchCmd.MarkFlagsOneRequired("jd", "jd-text")
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	fileProcessor := common.NewFileProcessor(logger)
	inputs := rt.session.Inputs()

	if err := inputs.SelectPath(input.SourceBrowse, matchConfig.ResumePath); err != nil {
		return err
	}

	jobDescription := matchConfig.JDText
	if matchConfig.JDPath != "" {
		if jobDescription, err = fileProcessor.ReadText(matchConfig.JDPath); err != nil {
			return err
		}
	}
	inputs.SetJobDescription(jobDescription)

	logger.Info("Starting resume match",
		"resume", matchConfig.ResumePath,
		"job_chars", len(jobDescription),
		"report", matchConfig.Report,
		"output_format", matchConfig.OutputFormat)

	if rt.session.Analyze(ctx) == workflow.TriggerIgnored {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"a resume and a non-empty job description are required", nil)
	}

	snap := rt.session.Snapshot()
	if snap.Analysis.Status == workflow.StatusFailed {
		return fmt.Errorf("analysis failed: %w", snap.Analysis.Err)
	}

	if matchConfig.SaveAnalysis != "" {
		raw, err := json.MarshalIndent(snap.Result, "", "  ")
		if err != nil {
			return errors.NewInternalError(errors.ErrCodeInvalidFormat, "cannot encode analysis result", err)
		}
		if err := fileProcessor.WriteFile(matchConfig.SaveAnalysis, raw); err != nil {
			return err
		}
		logger.Info("Analysis result saved", "file", matchConfig.SaveAnalysis)
	}

	if matchConfig.Report {
		if err := generateAndDeliver(ctx, rt, matchConfig.delivery); err != nil {
			return err
		}
		snap = rt.session.Snapshot()
	}

	output := common.NewOutputHandler(logger, rt.formatters)
	output.SetStdout(cmd.OutOrStdout())
	if err := output.HandleOutput(formatters.BuildView(snap.Result, snap.Location), matchConfig.CommandConfig); err != nil {
		return err
	}
	logger.Info("Resume match completed successfully", "epoch", snap.Epoch)
	return nil
}
