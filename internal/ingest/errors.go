package ingest

import (
	"errors"
	"fmt"
	"strings"

	"planynov/internal/schedule"
)

// Kind classifies why an ingestion did not replace the dataset.
type Kind string

const (
	KindUnsupportedType Kind = "unsupported_type"
	KindUnreadable      Kind = "unreadable"
	KindMissingColumns  Kind = "missing_columns"
	KindTooLarge        Kind = "too_large"
	KindInternal        Kind = "internal"
)

// Error is the structured failure of an ingestion. The dataset is left
// untouched whenever Ingest returns one.
type Error struct {
	Kind     Kind
	Filename string
	// Missing lists required columns absent from the header
	// (KindMissingColumns only), with their accepted aliases.
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("ingest %s: %s", e.Filename, e.Kind)
	if len(e.Missing) > 0 {
		msg += ": " + strings.Join(e.Missing, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to the person who uploaded the file.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindUnsupportedType:
		return "Type de fichier non autorisé"
	case KindUnreadable:
		return "Impossible de lire le fichier: format invalide ou corrompu"
	case KindTooLarge:
		return "Fichier trop volumineux"
	case KindMissingColumns:
		return "Colonnes obligatoires manquantes: " + strings.Join(e.Missing, ", ")
	default:
		return "Erreur lors du traitement du fichier"
	}
}

// KindOf extracts the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindInternal
}

// classify wraps a parser error into an *Error.
func classify(filename string, err error) *Error {
	var (
		ie *Error
		ce *schedule.ColumnsError
	)
	switch {
	case errors.As(err, &ie):
		return ie
	case errors.As(err, &ce):
		return &Error{Kind: KindMissingColumns, Filename: filename, Missing: ce.Describe(), Err: err}
	case errors.Is(err, schedule.ErrUnreadable):
		return &Error{Kind: KindUnreadable, Filename: filename, Err: err}
	default:
		return &Error{Kind: KindInternal, Filename: filename, Err: err}
	}
}
