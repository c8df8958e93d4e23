package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/traumaregistry/intake/internal/core"
	"github.com/traumaregistry/intake/internal/source"
)

type importOptions struct {
	sheet          string
	reportPath     string
	failedRowsPath string
}

// runImport reads the sheet at location and imports it. The sheet is read
// before the database is opened so a bad path fails fast.
func runImport(ctx context.Context, location string, opts importOptions, out io.Writer) error {
	if !source.IsS3(location) {
		if _, err := os.Stat(location); errors.Is(err, fs.ErrNotExist) {
			return withCode(exitUsage, fmt.Errorf("%s: %w", location, source.ErrNotFound))
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sheetName := opts.sheet
	if sheetName == "" {
		sheetName = cfg.Import.Sheet
	}
	opener := source.New(source.Config{
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		PathStyle: cfg.Storage.PathStyle,
	})
	sheet, err := opener.ReadSheet(ctx, location, core.ReadOptions{SheetName: sheetName})
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return withCode(exitUsage, err)
		}
		return err
	}
	slog.Info("sheet loaded", "source", sheet.Name, "rows", len(sheet.Rows))

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	rep, runErr := a.orch.Run(core.ContextWithRequester(ctx, "cli"), sheet)

	if err := writeArtifacts(rep, opts); err != nil {
		slog.Error("write run artifacts", "error", err)
	}
	if cfg.Metrics.PushgatewayURL != "" {
		if err := a.recorder.Push(context.WithoutCancel(ctx), cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			slog.Warn("metrics push failed", "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	success, _, skipped := rep.Totals()
	fmt.Fprintf(out, "SUCCESS: %s imported (%d rows, %d writes, %d skipped, run %s)\n",
		rep.Source, rep.Rows, success, skipped, rep.RunID)
	return nil
}

// writeArtifacts saves the report and failed rows when requested.
func writeArtifacts(rep *core.Report, opts importOptions) error {
	if opts.reportPath != "" {
		if err := writeFile(opts.reportPath, rep.WriteJSON); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if opts.failedRowsPath != "" && len(rep.FailedRows()) > 0 {
		if err := writeFile(opts.failedRowsPath, rep.WriteFailedRowsCSV); err != nil {
			return fmt.Errorf("write failed rows: %w", err)
		}
		slog.Info("failed rows written", "path", opts.failedRowsPath, "count", len(rep.FailedRows()))
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
