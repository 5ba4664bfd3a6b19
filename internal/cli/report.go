package cli

import (
	"context"
	"fmt"
	"strings"

	"rjdctl/internal/archive"
	"rjdctl/internal/client"
	"rjdctl/internal/common"
	"rjdctl/internal/errors"
	"rjdctl/internal/formatters"
	"rjdctl/internal/utils"
	"rjdctl/internal/workflow"

	"github.com/spf13/cobra"
)

// deliveryOptions says what happens to a generated report
type deliveryOptions struct {
	Download string
	Archive  bool
}

func (d deliveryOptions) wanted() bool {
	return d.Download != "" || d.Archive
}

type reportOptions struct {
	common.CommandConfig
	delivery deliveryOptions
}

var reportConfig reportOptions

var reportCmd = &cobra.Command{
	Use:   "report [analysis-file]",
	Short: "Generate a PDF report from a saved analysis result",
	Long: `Load an analysis result written by 'rjdctl match --save-analysis' and
request a PDF report for its match result. The file is validated the same way
a live service response is.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if reportConfig.OutputFormat == "" {
			reportConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(reportConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runReport,
}

func init() {
	addDeliveryFlags(reportCmd, &reportConfig.delivery)
	addOutputFlags(reportCmd, &reportConfig.CommandConfig, formatters.NewFormatterRegistry().GetSupportedFormats())
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	raw, err := common.NewFileProcessor(logger).ReadBytes(args[0])
	if err != nil {
		return err
	}
	result, err := client.ParseAnalysisResult(raw)
	if err != nil {
		return err
	}
	if result.MatchResult == nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s has no match_result to report on", args[0]), nil)
	}

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.session.LoadAnalysis(result); err != nil {
		return err
	}
	if err := generateAndDeliver(ctx, rt, reportConfig.delivery); err != nil {
		return err
	}

	snap := rt.session.Snapshot()
	output := common.NewOutputHandler(logger, rt.formatters)
	output.SetStdout(cmd.OutOrStdout())
	return output.HandleOutput(formatters.BuildView(snap.Result, snap.Location), reportConfig.CommandConfig)
}

// generateAndDeliver runs the report orchestrator, then downloads and
// archives the PDF as requested.
func generateAndDeliver(ctx context.Context, rt *runtime, opts deliveryOptions) error {
	if rt.session.GenerateReport(ctx) == workflow.TriggerIgnored {
		rt.logger.Warn("Analysis has no match result, skipping report")
		return nil
	}

	snap := rt.session.Snapshot()
	if snap.Report.Status == workflow.StatusFailed {
		return fmt.Errorf("report generation failed: %w", snap.Report.Err)
	}
	if snap.Location == nil || !opts.wanted() {
		return nil
	}

	content, err := rt.service.Download(ctx, snap.Location)
	if err != nil {
		return err
	}

	if opts.Download != "" {
		if err := common.NewFileProcessor(rt.logger).WriteFile(opts.Download, content); err != nil {
			return err
		}
		rt.logger.Info("Report downloaded",
			"file", opts.Download,
			"size", utils.FormatFileSize(int64(len(content))))
	}

	if opts.Archive {
		store, err := archive.New(ctx, rt.cfg.Archive, rt.logger)
		if err != nil {
			return err
		}
		if _, err := store.Upload(ctx, snap.Location.Path, content); err != nil {
			return err
		}
	}
	return nil
}

func addDeliveryFlags(cmd *cobra.Command, opts *deliveryOptions) {
	cmd.Flags().StringVar(&opts.Download, "download", "", "Save the generated PDF report to this file")
	cmd.Flags().BoolVar(&opts.Archive, "archive", false, "Upload the generated PDF report to the archive bucket")
}

// addOutputFlags registers -o and --format with completion limited to the
// configured formats the command can render.
func addOutputFlags(cmd *cobra.Command, cfg *common.CommandConfig, renderable []string) {
	cmd.Flags().StringVarP(&cfg.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&cfg.OutputFormat, "format", "", "Output format: "+strings.Join(renderable, ", "))

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		appCfg := getConfigFromContext(cmd.Context())
		return common.CompletableFormats(appCfg.App.SupportedFormats, renderable), cobra.ShellCompDirectiveNoFileComp
	})
}
