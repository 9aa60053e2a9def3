package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"geoetl/internal/config"
	"geoetl/internal/datasource/file"
	"geoetl/internal/geometry"
	"geoetl/internal/logging"
	"geoetl/internal/pipeline"
	"geoetl/internal/schemamap"
	"geoetl/internal/storage"
)

// runFlags override the pipeline file.
type runFlags struct {
	configPath     string
	listPath       string
	verbose        bool
	metricsBackend string
	pushgatewayURL string
	failOnError    bool
}

func newRunCommand(stdout, stderr io.Writer) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the batch load",
		Long: `
Loads every matching file of input.dir, or every path of --list, into the
configured database. A failed file is logged and skipped; the exit code is 0
unless the run could not start (1) or --fail-on-error is set and a file
failed (2).
`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runPipeline(c.Context(), f, stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "configs/pipeline.yaml", "pipeline config path (.json, .yaml)")
	flags.StringVar(&f.listPath, "list", "", "text file with one input path per line; replaces the input.dir scan")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "enable verbose logs")
	flags.StringVar(&f.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway, datadog (overrides config and METRICS_BACKEND)")
	flags.StringVar(&f.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides config and PUSHGATEWAY_URL)")
	flags.BoolVar(&f.failOnError, "fail-on-error", false, "exit with code 2 when any file fails")
	return cmd
}

func runPipeline(ctx context.Context, f runFlags, stdout, stderr io.Writer) error {
	p, err := loadConfig(f.configPath, stderr)
	if err != nil {
		return err
	}
	if f.verbose {
		p.Logging.Verbose = true
	}
	if f.metricsBackend != "" {
		p.Metrics.Backend = f.metricsBackend
	}
	if f.pushgatewayURL != "" {
		p.Metrics.PushgatewayURL = f.pushgatewayURL
	}

	run, err := logging.OpenWith(p.Logging.Dir, p.Logging.Verbose, stderr)
	if err != nil {
		return fatal("open log: %w", err)
	}
	defer run.Close()
	logger := run.Logger()

	flush := setupMetrics(p, logger)
	defer flush()

	files, err := inputFiles(p, f.listPath)
	if err != nil {
		run.Error("pipeline: %v", err)
		return fatal("%w", err)
	}
	run.Info("pipeline: job=%s storage=%s files=%d log=%s", p.Job, p.Storage.Kind, len(files), run.Path())
	run.Verbose("pipeline: input=%s extensions=%v output=%s", p.Input.Dir, p.Input.Extensions, p.Output.Dir)

	mapper, closeMapper := openMapper(p.Mapping.Workbook, logger)
	defer closeMapper()

	repo, err := storage.New(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DB.DSN})
	if err != nil {
		run.Error("pipeline: open storage kind=%s: %v", p.Storage.Kind, err)
		return fatal("open storage: %w", err)
	}
	defer repo.Close()

	loader := storage.NewLoader(repo, storage.LoaderOptions{
		Schema:          p.Storage.DB.Schema,
		GeographyColumn: p.Storage.DB.GeographyColumn,
		WKBColumn:       p.Storage.DB.WKBColumn,
		SRID:            p.Geometry.TargetSRID,
		Transactional:   p.Storage.DB.IsTransactional(),
		BatchSize:       p.Storage.Options.Int("batch_size", 0),
	}, logger)

	opts := pipeline.Options{
		Job:                p.Job,
		TargetSRID:         p.Geometry.TargetSRID,
		SourceSRIDOverride: p.Geometry.SourceSRIDOverride,
	}
	if p.Output.Format == "geojson" {
		opts.OutputDir = p.Output.Dir
	}
	runner := pipeline.New(mapper, geometry.New(p.Geometry.Workers, logger), loader, logger, opts)

	sum := runner.Run(ctx, files)
	printSummary(stdout, sum)

	if f.failOnError && sum.Failed() > 0 {
		return &exitError{code: exitFileFailed, err: fmt.Errorf("geoetl: %d of %d files failed", sum.Failed(), len(sum.Results))}
	}
	return nil
}

// loadConfig loads and lints the pipeline file. Issues are printed; any
// error-level issue is fatal.
func loadConfig(path string, stderr io.Writer) (config.Pipeline, error) {
	p, err := config.Load(path)
	if err != nil {
		return config.Pipeline{}, fatal("%w", err)
	}
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return config.Pipeline{}, fatal("configuration is invalid: %s", path)
	}
	return p, nil
}

// inputFiles enumerates the run's inputs. Failing to enumerate is fatal.
func inputFiles(p config.Pipeline, listPath string) ([]string, error) {
	if listPath != "" {
		files, err := file.ReadList(listPath)
		if err != nil {
			return nil, fmt.Errorf("read input list %s: %w", listPath, err)
		}
		return files, nil
	}
	return file.ListFiles(p.Input.Dir, p.Input.Extensions)
}

// openMapper opens the mapping workbook. A workbook that cannot be opened
// degrades to no mappings for the whole run.
func openMapper(path string, logger *log.Logger) (*schemamap.Mapper, func()) {
	if path == "" {
		return schemamap.NewMapper(nil, logger), func() {}
	}
	x, err := schemamap.OpenExcel(path)
	if err != nil {
		logger.Printf("ERROR %v; continuing without rename mappings",
			&pipeline.StageError{Kind: pipeline.ErrSchemaLookup, Stage: pipeline.Pending, File: path, Err: err})
		return schemamap.NewMapper(nil, logger), func() {}
	}
	return schemamap.NewMapper(x, logger), func() {
		if err := x.Close(); err != nil {
			logger.Printf("WARN schemamap: close workbook: %v", err)
		}
	}
}

func printSummary(w io.Writer, sum pipeline.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATE\tTABLE\tFEATURES\tROWS\tFINGERPRINT\tELAPSED\tERROR")
	for _, r := range sum.Results {
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		fp := "-"
		if r.Fingerprint != 0 {
			fp = fmt.Sprintf("%016x", r.Fingerprint)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			r.Path, r.State, r.Table, r.Features, r.Rows, fp, r.Duration.Truncate(time.Millisecond), msg)
	}
	tw.Flush()
	fmt.Fprintf(w, "files=%d succeeded=%d failed=%d elapsed=%s\n",
		len(sum.Results), sum.Succeeded(), sum.Failed(), sum.Duration.Truncate(time.Millisecond))
}
