// Command chart-import loads a YAML chart catalog into the chartrank store.
//
// The store is selected by the same CHARTRANK_ configuration as the server.
// Every chart is imported in its own transaction; the first failure stops
// the run and leaves earlier charts in place.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	repository "github.com/okian/chartrank/internal/adapters/repository"
	service "github.com/okian/chartrank/internal/app"
	"github.com/okian/chartrank/internal/config"
	"github.com/okian/chartrank/internal/importer"
	"github.com/okian/chartrank/pkg/logger"
)

// ErrNoFile is returned when no catalog path is given.
var ErrNoFile = errors.New("catalog file is required")

func main() {
	var (
		path    = flag.String("file", "", "YAML catalog to import")
		driver  = flag.String("db-driver", "", "Override CHARTRANK_DB_DRIVER")
		dsn     = flag.String("db-dsn", "", "Override CHARTRANK_DB_DSN")
		verbose = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *driver != "" {
		cfg.DBDriver = *driver
	}
	if *dsn != "" {
		cfg.DBDSN = *dsn
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	} else if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	rep, err := run(ctx, cfg, *path)
	log := logger.Get().Named("chart-import")
	if err != nil {
		log.Error(ctx, "import failed", logger.Error(err), logger.Any("report", rep))
		os.Exit(1)
	}
	log.Info(ctx, "import completed",
		logger.Int("charts_created", rep.ChartsCreated),
		logger.Int("charts_updated", rep.ChartsUpdated),
		logger.Int("legacy_saved", rep.LegacySaved),
		logger.Int("courses_saved", rep.CoursesSaved),
	)
}

// run imports the catalog at path into the store named by cfg. The report
// counts what was written before any failure.
func run(ctx context.Context, cfg *config.Config, path string) (importer.Report, error) {
	if path == "" {
		return importer.Report{}, ErrNoFile
	}
	store, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return importer.Report{}, fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		return importer.Report{}, err
	}
	svc := service.New(store, append(opts, service.WithLogger(logger.Get().Named("service")))...)

	im := importer.New(svc, importer.WithLogger(logger.Get().Named("importer")))
	return im.ImportFile(ctx, path)
}
