package web

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"planynov/internal/ingest"
	appLog "planynov/internal/log"
	"planynov/internal/model"
	"planynov/internal/store"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to disk.
const multipartMemory = 8 << 20

// indexPage is the data rendered by templates/index.html.
type indexPage struct {
	Flash    *flash
	Records  []model.OccupancyRecord
	Stats    model.Stats
	Source   string
	LoadedAt time.Time
	Last     *ingest.Summary
}

// handleIndex renders the current dataset as an HTML table together with
// the upload form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	data := indexPage{
		Flash:    popFlash(w, r),
		Records:  snap.Records,
		Stats:    store.ComputeStats(snap.Records),
		Source:   snap.Source,
		LoadedAt: snap.LoadedAt,
	}
	if last, ok := s.ingest.LastSummary(); ok {
		data.Last = &last
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		appLog.FromContext(r.Context()).Error("index render failed", "err", err)
	}
}

// handleUpload ingests a schedule file from the multipart field "file" and
// redirects back to the listing with a flash message. Failures never change
// the served dataset.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := appLog.FromContext(r.Context())

	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.redirectWithFlash(w, r, flashError, "Fichier trop volumineux")
			return
		}
		logger.Warn("upload form parse failed", "err", err)
		s.redirectWithFlash(w, r, flashError, "Aucun fichier sélectionné")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.Error("multipart cleanup failed", "err", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		s.redirectWithFlash(w, r, flashError, "Aucun fichier sélectionné")
		return
	}
	defer file.Close()

	sum, err := s.ingest.Ingest(r.Context(), header.Filename, file)
	if err != nil {
		msg := "Erreur lors du traitement du fichier"
		var ie *ingest.Error
		if errors.As(err, &ie) {
			msg = ie.UserMessage()
		}
		s.redirectWithFlash(w, r, flashError, msg)
		return
	}

	msg := fmt.Sprintf("Fichier téléversé avec succès! %d événements chargés.", sum.Accepted)
	if n := len(sum.Rejected); n > 0 {
		msg += fmt.Sprintf(" %d lignes rejetées.", n)
	}
	s.redirectWithFlash(w, r, flashSuccess, msg)
}

func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	setFlash(w, kind, msg)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleOccupation returns the whole dataset as a JSON array. An empty
// dataset triggers a lazy load of the default calendar, if configured.
func (s *Server) handleOccupation(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ingest.EnsureLoaded(r.Context()); err != nil {
		appLog.FromContext(r.Context()).Error("lazy default calendar load failed", "err", err)
	}
	writeJSON(w, http.StatusOK, s.store.Snapshot().Records)
}

// statsResponse is the JSON response shape for /api/stats.
type statsResponse struct {
	model.Stats
	LastUpdated time.Time `json:"last_updated"`
	Message     string    `json:"message,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{
		Stats:       s.store.Stats(),
		LastUpdated: s.now(),
	}
	if resp.TotalEvents == 0 {
		resp.Message = "Aucune donnée chargée"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLastUpload(w http.ResponseWriter, _ *http.Request) {
	last, ok := s.ingest.LastSummary()
	if !ok {
		writeError(w, http.StatusNotFound, "Aucun fichier téléversé")
		return
	}
	writeJSON(w, http.StatusOK, last)
}

var templateFuncs = template.FuncMap{
	"joinInts": func(xs []int) string {
		parts := make([]string, len(xs))
		for i, x := range xs {
			parts[i] = strconv.Itoa(x)
		}
		return strings.Join(parts, ", ")
	},
}
