package cli

import (
	"time"

	"rjdctl/internal/input"
	"rjdctl/internal/server"
	"rjdctl/internal/watch"

	"github.com/spf13/cobra"
)

type serveOptions struct {
	Host          string
	Port          string
	WatchResume   string
	WatchJD       string
	WatchDebounce time.Duration
}

var serveConfig serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local control API for browser front ends",
	Long: `Start an HTTP server that drives one matching session.

Available endpoints:
- GET /health and GET /stats
- GET /session: inputs, operation statuses and the report link
- PUT /session/resume and POST /session/resume/drop: select a resume
- PUT /session/job-description: replace the job description
- POST|DELETE /session/analyze and /session/report: start or cancel
- GET /session/view?format=: the rendered match result

With --watch-resume and --watch-jd the session inputs follow the given files:
every settled write selects the resume again or replaces the job description.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfig.Port, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveConfig.Host, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&serveConfig.WatchResume, "watch-resume", "", "Resume file to select on every change")
	serveCmd.Flags().StringVar(&serveConfig.WatchJD, "watch-jd", "", "Job description file to load on every change")
	serveCmd.Flags().DurationVar(&serveConfig.WatchDebounce, "watch-debounce", 200*time.Millisecond, "Quiet period before a watched file is reloaded")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	serverCfg := cfg.Server
	if serveConfig.Host != "" {
		serverCfg.Host = serveConfig.Host
	}
	if serveConfig.Port != "" {
		serverCfg.Port = serveConfig.Port
	}

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if serveConfig.WatchResume != "" || serveConfig.WatchJD != "" {
		stop, err := startWatching(rt, serveConfig)
		if err != nil {
			return err
		}
		defer stop()
	}

	srv := server.NewServer(serverCfg, server.Dependencies{
		Version:       Version,
		Session:       rt.session,
		Service:       rt.service,
		Formatters:    rt.formatters,
		Observability: rt.observability,
	}, logger)
	srv.SetOutput(cmd.OutOrStdout())
	return srv.Start(ctx)
}

// startWatching loads the watched files once, then follows their changes
func startWatching(rt *runtime, opts serveOptions) (func(), error) {
	inputs := rt.session.Inputs()

	if opts.WatchResume != "" {
		if err := inputs.SelectPath(input.SourceWatch, opts.WatchResume); err != nil {
			rt.logger.LogError(err, "Initial resume not selected", "file", opts.WatchResume)
		}
	}
	if opts.WatchJD != "" {
		if err := watch.LoadJobDescription(inputs, opts.WatchJD); err != nil {
			rt.logger.LogError(err, "Initial job description not loaded", "file", opts.WatchJD)
		}
	}

	watcher, err := watch.ForInputs(inputs, opts.WatchResume, opts.WatchJD, opts.WatchDebounce, rt.logger)
	if err != nil {
		return nil, err
	}
	if err := watcher.Start(); err != nil {
		return nil, err
	}
	return func() { _ = watcher.Stop() }, nil
}
