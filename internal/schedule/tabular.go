package schedule

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	appLog "planynov/internal/log"
	"planynov/internal/model"
)

// ErrUnreadable marks a file that could not be loaded as a schedule at all
// (corrupt, wrong encoding, no header row). Parsers wrap it.
var ErrUnreadable = errors.New("unreadable schedule file")

// Result is the outcome of normalizing one file: the accepted records in
// input order plus the rows that were skipped.
type Result struct {
	Records  []model.OccupancyRecord
	Rejected []RowIssue
}

// RowIssue describes a data row skipped during normalization. Row is the
// 1-based index of the row after the header.
type RowIssue struct {
	Row    int    `json:"row"`
	Room   string `json:"room"`
	Reason string `json:"reason"`
}

// Row rejection reasons.
const (
	ReasonMissingRoom  = "missing room name"
	ReasonFloor        = "floor cannot be derived"
	ReasonMissingField = "missing required field"
)

// ParseCSV reads a delimited file with a header row and normalizes it.
func ParseCSV(r io.Reader) (Result, error) {
	header, rows, err := ReadCSV(r)
	if err != nil {
		return Result{}, err
	}
	return NormalizeRows(header, rows)
}

// ParseSpreadsheet reads one sheet of a workbook and normalizes it. An empty
// sheet name selects the first sheet.
func ParseSpreadsheet(path, sheet string) (Result, error) {
	header, rows, err := ReadSpreadsheet(path, sheet)
	if err != nil {
		return Result{}, err
	}
	return NormalizeRows(header, rows)
}

// ReadCSV returns the header and data rows of a UTF-8 delimited file. The
// delimiter is ',' unless the header line only contains ';'.
func ReadCSV(r io.Reader) ([]string, [][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, nil, fmt.Errorf("%w: content is not valid UTF-8", ErrUnreadable)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: no header row", ErrUnreadable)
	}
	return records[0], records[1:], nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.IndexByte(line, ';') >= 0 && bytes.IndexByte(line, ',') < 0 {
		return ';'
	}
	return ','
}

// NormalizeRows resolves the header against the alias table and validates
// every data row. A header lacking a required column fails the whole file
// with a *ColumnsError; invalid rows are skipped and reported in
// Result.Rejected.
func NormalizeRows(header []string, rows [][]string) (Result, error) {
	idx, err := resolveColumns(header)
	if err != nil {
		return Result{}, err
	}

	res := Result{Records: make([]model.OccupancyRecord, 0, len(rows))}
	for i, row := range rows {
		if isBlankRow(row) {
			continue
		}
		rowNum := i + 1

		rec, reason := normalizeRow(idx, row)
		if reason != "" {
			appLog.Warn("schedule row rejected", "row", rowNum, "room", rec.RoomName, "reason", reason)
			res.Rejected = append(res.Rejected, RowIssue{Row: rowNum, Room: rec.RoomName, Reason: reason})
			continue
		}
		res.Records = append(res.Records, rec)
	}

	appLog.Info("schedule rows normalized", "accepted", len(res.Records), "rejected", len(res.Rejected))
	return res, nil
}

// normalizeRow builds a record from one row. A non-empty reason means the
// row is rejected; the returned record then only carries the room name.
func normalizeRow(idx columnIndex, row []string) (model.OccupancyRecord, string) {
	rec := model.OccupancyRecord{
		RoomName: idx.value(row, FieldRoom),
	}
	if rec.RoomName == "" {
		return rec, ReasonMissingRoom
	}

	floor, ok := rowFloor(idx.value(row, FieldFloor), rec.RoomName)
	if !ok {
		return rec, ReasonFloor
	}
	rec.Floor = floor

	rec.OccupationDate = datePart(idx.value(row, FieldDate))
	rec.StartTime = idx.value(row, FieldStart)
	rec.EndTime = idx.value(row, FieldEnd)
	rec.ClassName = idx.value(row, FieldClass)
	if rec.OccupationDate == "" || rec.StartTime == "" || rec.EndTime == "" || rec.ClassName == "" {
		return rec, ReasonMissingField
	}

	rec.InstructorName = idx.value(row, FieldInstructor)
	if isNotAValue(rec.InstructorName) {
		rec.InstructorName = ""
	}
	return rec, ""
}

// rowFloor prefers an explicit floor cell and otherwise derives the floor
// from the room name with its room-type letter stripped.
func rowFloor(explicit, room string) (int, bool) {
	if explicit != "" && !isNotAValue(explicit) {
		return parseFloor(explicit)
	}
	return InferFloor(stripRoomLetter(room))
}

// parseFloor accepts integers and integral decimals ("2", "2.0"), which is
// how spreadsheets often hand numeric cells back.
func parseFloor(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// datePart keeps what precedes the first whitespace, so a timestamp-like
// "2024-02-01 00:00:00" becomes "2024-02-01".
func datePart(s string) string {
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}

func isNotAValue(s string) bool {
	switch strings.ToLower(s) {
	case "nan", "null", "none", "nat":
		return true
	}
	return false
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
