package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/foodcart/internal/app"
	"github.com/xenking/foodcart/internal/menu"
)

const (
	progressEvery = 10_000
	maxLineBytes  = 4 << 20
)

type config struct {
	Database app.DatabaseConfig
	DataDir  string `default:"data" usage:"Directory containing *.ndjson.gz menu dumps" flag:"data-dir"`
	Expected uint   `default:"100000" usage:"Expected number of restaurants, sizes the dedup filter"`
}

// record is one decoded line tagged with its origin for error reporting.
type record struct {
	file  string
	line  int
	entry menu.Entry
}

func main() {
	lg := newLogger()
	defer func() { _ = lg.Sync() }()

	var cfg config
	if err := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FOODCART",
		SkipFiles: true,
	}).Load(); err != nil {
		lg.Fatal("Load config", zap.Error(err))
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Database.URL == "" {
		lg.Fatal("Database URL is required: set FOODCART_DATABASE_URL or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg); err != nil {
		lg.Fatal("Menu ingest failed", zap.Error(err))
	}
	lg.Info("Menu ingest completed")
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	files, err := filepath.Glob(filepath.Join(cfg.DataDir, "*.ndjson.gz"))
	if err != nil {
		return errors.Wrap(err, "list dumps")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.ndjson.gz files in %s", cfg.DataDir)
	}
	sort.Strings(files)
	lg.Info("Found menu dumps", zap.Strings("files", files))

	repos, err := app.OpenRepositories(ctx, lg, cfg.Database)
	if err != nil {
		return errors.Wrap(err, "open repositories")
	}
	defer func() { _ = repos.Close() }()

	im := menu.NewImporter(repos.Restaurants, lg, cfg.Expected)
	known, err := im.Preload(ctx)
	if err != nil {
		return err
	}
	lg.Info("Catalog loaded", zap.Int("restaurants", known))
	records := make(chan record, 1024)

	// Files are decoded concurrently; a single writer owns the importer.
	g, gctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(gctx)
	for _, f := range files {
		readers.Go(func() error {
			return streamFile(rctx, lg, f, records)
		})
	}
	g.Go(func() error {
		defer close(records)
		return readers.Wait()
	})
	g.Go(func() error {
		var n int
		for rec := range records {
			if _, err := im.Import(gctx, rec.entry); err != nil {
				return errors.Wrapf(err, "%s:%d", rec.file, rec.line)
			}
			n++
			if n%progressEvery == 0 {
				stats := im.Stats()
				lg.Info("Progress",
					zap.Int("processed", n),
					zap.Int("restaurants", stats.Restaurants),
					zap.Int("duplicates", stats.Duplicates),
				)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	stats := im.Stats()
	lg.Info("Imported",
		zap.Int("restaurants", stats.Restaurants),
		zap.Int("dishes", stats.Dishes),
		zap.Int("duplicates", stats.Duplicates),
	)
	return nil
}

// streamFile decodes every non-empty line of a gzip NDJSON dump and sends it
// to out.
func streamFile(ctx context.Context, lg *zap.Logger, path string, out chan<- record) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	name := filepath.Base(path)
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	var line int
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		entry, err := menu.DecodeEntry(jx.DecodeBytes(raw))
		if err != nil {
			return errors.Wrapf(err, "%s:%d", name, line)
		}
		select {
		case out <- record{file: name, line: line, entry: entry}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	lg.Info("File complete", zap.String("file", name), zap.Int("lines", line))
	return nil
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	lg, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return lg
}
