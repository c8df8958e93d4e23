package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/traumaregistry/intake/internal/core"
	"github.com/traumaregistry/intake/internal/logging"
)

const (
	// multipartMemory is how much of an upload is buffered in memory before
	// spilling to a temp file.
	multipartMemory = 32 << 20
	// formOverhead allows for multipart boundaries and the other form fields.
	formOverhead = 1 << 20
)

// handleHealth reports liveness and, when configured, database readiness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			respondError(w, r, err, http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleImport reads the uploaded sheet and runs it to completion.
//
// The run is detached from the request context: a client that disconnects
// mid-run does not roll back work that would otherwise commit.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxFileSize+formOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, r, fmt.Errorf("upload: %w", core.ErrFileTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if header.Size > s.opts.MaxFileSize {
		respondError(w, r, fmt.Errorf("%s: %w", header.Filename, core.ErrFileTooLarge), http.StatusRequestEntityTooLarge)
		return
	}

	sheetName := r.FormValue("sheet")
	if sheetName == "" {
		sheetName = s.opts.Sheet
	}

	sheet, err := core.ReadSheet(header.Filename, file, core.ReadOptions{SheetName: sheetName})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, core.ErrFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		respondError(w, r, err, status)
		return
	}

	ctx := context.WithoutCancel(WithRequestMetadata(r.Context(), r))
	rep, err := s.importer.Import(ctx, sheet)
	if rep == nil {
		if errors.Is(err, core.ErrImportBusy) {
			w.Header().Set("Retry-After", strconv.Itoa(60))
			respondError(w, r, err, http.StatusTooManyRequests)
			return
		}
		if errors.Is(err, core.ErrImportsClosed) {
			respondError(w, r, err, http.StatusServiceUnavailable)
			return
		}
		if err == nil {
			err = errors.New("import produced no report")
		}
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	logging.FromContext(r.Context()).Info("import finished",
		"run_id", rep.RunID,
		"source", rep.Source,
		"state", rep.State,
	)

	status := http.StatusOK
	if !rep.Committed {
		status = http.StatusUnprocessableEntity
	}
	writeJSONStatus(w, status, rep)
}

// handleGetReport returns a finished run's report.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.lookupReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, rep)
}

// handleFailedRows downloads a run's failed rows as CSV.
func (s *Server) handleFailedRows(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.lookupReport(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_failed_rows.csv"`, rep.RunID))
	if err := rep.WriteFailedRowsCSV(w); err != nil {
		logging.FromContext(r.Context()).Error("write failed rows", "run_id", rep.RunID, "error", err)
	}
}

func (s *Server) lookupReport(w http.ResponseWriter, r *http.Request) (*core.Report, bool) {
	rep, err := s.importer.Report(chi.URLParam(r, "runID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, r, err, status)
		return nil, false
	}
	return rep, true
}
