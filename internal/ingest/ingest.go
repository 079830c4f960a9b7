// Package ingest turns an uploaded schedule file into the served dataset.
//
// Ingest picks a parser from the file extension, spools the upload to a
// temporary file, parses it, and on success replaces the dataset in the
// store. On any failure the previous dataset stays in place. The temporary
// file is removed on every exit path, including panics in a parser.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"planynov/internal/ics"
	appLog "planynov/internal/log"
	"planynov/internal/metrics"
	"planynov/internal/schedule"
	"planynov/internal/store"
)

// Format is a supported schedule file format, named after its extension.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatICS  Format = "ics"
)

// FormatOf returns the format selected by filename's extension.
func FormatOf(filename string) (Format, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch f := Format(ext); f {
	case FormatCSV, FormatXLSX, FormatXLS, FormatICS:
		return f, true
	}
	return "", false
}

// Options configures a Service.
type Options struct {
	// UploadDir receives temporary copies of uploads.
	UploadDir string
	// MaxBytes caps an upload; zero means no cap.
	MaxBytes int64
	// Sheet selects the workbook sheet for xlsx/xls; empty means the first.
	Sheet string
	// Calendar tunes the iCalendar path.
	Calendar schedule.CalendarOptions
	// DefaultCalendar is lazily loaded while the dataset is empty.
	DefaultCalendar string
}

// Summary reports a successful ingestion.
type Summary struct {
	UploadID   string              `json:"upload_id"`
	Filename   string              `json:"filename"`
	Format     Format              `json:"format"`
	Accepted   int                 `json:"accepted"`
	Rejected   []schedule.RowIssue `json:"rejected"`
	DurationMS int64               `json:"duration_ms"`
	IngestedAt time.Time           `json:"ingested_at"`
}

// Service ingests schedule files into a store.
type Service struct {
	store *store.Store
	opts  Options

	lastMu sync.RWMutex
	last   *Summary

	// Serializes lazy/default loads so concurrent first reads parse once.
	defaultMu sync.Mutex
}

// NewService constructs a Service writing into st.
func NewService(st *store.Store, opts Options) *Service {
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	return &Service{store: st, opts: opts}
}

// Ingest parses the upload read from r and, on success, replaces the
// dataset. filename is only used for its extension and for logging.
func (s *Service) Ingest(ctx context.Context, filename string, r io.Reader) (sum Summary, err error) {
	logger := appLog.FromContext(ctx).With("filename", filename)
	started := time.Now()

	format, ok := FormatOf(filename)
	if !ok {
		logger.Warn("upload rejected: unsupported file type")
		metrics.ObserveIngest("unsupported", metrics.ResultError, 0, 0, time.Since(started))
		return Summary{}, &Error{Kind: KindUnsupportedType, Filename: filename}
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("ingest panic recovered", "panic", rec, "stack", string(debug.Stack()))
			err = &Error{Kind: KindInternal, Filename: filename, Err: fmt.Errorf("panic: %v", rec)}
		}
		if err != nil {
			metrics.ObserveIngest(string(format), metrics.ResultError, 0, 0, time.Since(started))
		}
	}()

	path, cleanup, err := s.spool(filename, format, r)
	if err != nil {
		logger.Error("upload spool failed", "err", err)
		return Summary{}, err
	}
	defer cleanup()

	return s.ingestPath(ctx, path, filename, format, started)
}

// LoadFile ingests a schedule file already on disk, replacing the dataset on
// success.
func (s *Service) LoadFile(ctx context.Context, path string) (Summary, error) {
	format, ok := FormatOf(path)
	if !ok {
		return Summary{}, &Error{Kind: KindUnsupportedType, Filename: path}
	}
	return s.ingestPath(ctx, path, path, format, time.Now())
}

// EnsureLoaded loads the default calendar while the dataset is empty. It
// reports whether records were installed. A missing default file is not an
// error; a corrupt one is returned and leaves the dataset empty.
func (s *Service) EnsureLoaded(ctx context.Context) (bool, error) {
	if s.opts.DefaultCalendar == "" || s.store.Len() > 0 {
		return false, nil
	}

	s.defaultMu.Lock()
	defer s.defaultMu.Unlock()
	if s.store.Len() > 0 {
		return false, nil
	}

	path := s.opts.DefaultCalendar
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	res, format, err := s.parse(ctx, path, path)
	if err != nil {
		appLog.Error("default calendar load failed", err, "path", path)
		return false, err
	}
	installed := s.store.ReplaceIf(path, store.OriginDefault, res.Records, isEmpty)
	if installed {
		metrics.SetDatasetSize(len(res.Records))
		appLog.Info("default calendar loaded", "path", path, "format", format, "records", len(res.Records))
	}
	return installed, nil
}

// RefreshDefault reloads the default calendar unless the dataset came from
// an upload. Uploaded data is never overwritten by a refresh, even when the
// uploaded file carries the default calendar's name.
func (s *Service) RefreshDefault(ctx context.Context) error {
	path := s.opts.DefaultCalendar
	if path == "" {
		return nil
	}
	if s.store.Origin() == store.OriginUpload {
		appLog.Debug("default calendar refresh skipped: dataset comes from an upload", "source", s.store.Source())
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	s.defaultMu.Lock()
	defer s.defaultMu.Unlock()

	started := time.Now()
	res, format, err := s.parse(ctx, path, path)
	if err != nil {
		ie := classify(path, err)
		appLog.Error("default calendar refresh failed", err, "path", path, "kind", ie.Kind)
		metrics.ObserveIngest(string(format), metrics.ResultError, 0, 0, time.Since(started))
		return ie
	}

	// An upload may have landed while parsing; the swap re-checks under
	// the store lock.
	if !s.store.ReplaceIf(path, store.OriginDefault, res.Records, notUploaded) {
		appLog.Debug("default calendar refresh skipped: upload arrived during refresh", "path", path)
		return nil
	}
	metrics.SetDatasetSize(len(res.Records))
	metrics.ObserveIngest(string(format), metrics.ResultSuccess, len(res.Records), len(res.Rejected), time.Since(started))
	appLog.Info("default calendar refreshed", "path", path, "records", len(res.Records))
	return nil
}

func isEmpty(cur store.Snapshot) bool {
	return len(cur.Records) == 0
}

func notUploaded(cur store.Snapshot) bool {
	return cur.Origin != store.OriginUpload
}

// LastSummary returns the summary of the most recent successful ingestion.
func (s *Service) LastSummary() (Summary, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	if s.last == nil {
		return Summary{}, false
	}
	return *s.last, true
}

func (s *Service) ingestPath(ctx context.Context, path, filename string, format Format, started time.Time) (Summary, error) {
	logger := appLog.FromContext(ctx).With("filename", filename, "format", format)

	res, _, err := s.parse(ctx, path, filename)
	if err != nil {
		ie := classify(filename, err)
		logger.Error("schedule ingestion failed", "kind", ie.Kind, "err", err)
		return Summary{}, ie
	}

	s.store.Replace(filename, store.OriginUpload, res.Records)
	metrics.SetDatasetSize(len(res.Records))

	rejected := res.Rejected
	if rejected == nil {
		rejected = []schedule.RowIssue{}
	}
	sum := Summary{
		UploadID:   uuid.NewString(),
		Filename:   filename,
		Format:     format,
		Accepted:   len(res.Records),
		Rejected:   rejected,
		DurationMS: time.Since(started).Milliseconds(),
		IngestedAt: time.Now(),
	}
	metrics.ObserveIngest(string(format), metrics.ResultSuccess, sum.Accepted, len(sum.Rejected), time.Since(started))

	s.lastMu.Lock()
	s.last = &sum
	s.lastMu.Unlock()

	logger.Info("schedule ingested",
		"upload_id", sum.UploadID,
		"accepted", sum.Accepted,
		"rejected", len(sum.Rejected),
		"duration_ms", sum.DurationMS,
	)
	return sum, nil
}

// parse dispatches on the extension of name and parses the file at path.
func (s *Service) parse(ctx context.Context, path, name string) (schedule.Result, Format, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Result{}, "", err
	}

	format, ok := FormatOf(name)
	if !ok {
		return schedule.Result{}, "", &Error{Kind: KindUnsupportedType, Filename: name}
	}

	switch format {
	case FormatICS:
		body, err := os.ReadFile(path)
		if err != nil {
			return schedule.Result{}, format, fmt.Errorf("%w: %v", schedule.ErrUnreadable, err)
		}
		res, err := schedule.ParseCalendar(ics.Source{ID: filepath.Base(name)}, body, s.opts.Calendar)
		return res, format, err

	case FormatCSV:
		f, err := os.Open(path)
		if err != nil {
			return schedule.Result{}, format, fmt.Errorf("%w: %v", schedule.ErrUnreadable, err)
		}
		defer f.Close()
		res, err := schedule.ParseCSV(f)
		return res, format, err

	default:
		res, err := schedule.ParseSpreadsheet(path, s.opts.Sheet)
		return res, format, err
	}
}

// spool copies r into a fresh temporary file under UploadDir. The returned
// cleanup removes it and must always be called once err is nil.
func (s *Service) spool(filename string, format Format, r io.Reader) (string, func(), error) {
	if err := os.MkdirAll(s.opts.UploadDir, 0o700); err != nil {
		return "", nil, &Error{Kind: KindInternal, Filename: filename, Err: err}
	}

	tmp, err := os.CreateTemp(s.opts.UploadDir, "upload-*."+string(format))
	if err != nil {
		return "", nil, &Error{Kind: KindInternal, Filename: filename, Err: err}
	}
	path := tmp.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			appLog.Error("temporary upload cleanup failed", err, "path", path)
		}
	}

	src := r
	if s.opts.MaxBytes > 0 {
		src = io.LimitReader(r, s.opts.MaxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, &Error{Kind: KindUnreadable, Filename: filename, Err: err}
	}
	if s.opts.MaxBytes > 0 && n > s.opts.MaxBytes {
		cleanup()
		return "", nil, &Error{Kind: KindTooLarge, Filename: filename, Err: fmt.Errorf("upload exceeds %d bytes", s.opts.MaxBytes)}
	}
	return path, cleanup, nil
}
