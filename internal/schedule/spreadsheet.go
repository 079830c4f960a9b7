package schedule

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	appLog "planynov/internal/log"
)

// cellKind says how a numeric cell is meant to be read, from its number
// format.
type cellKind int

const (
	cellPlain cellKind = iota
	cellDate
	cellTime
	cellDateTime
)

// ReadSpreadsheet returns the header and data rows of a workbook sheet.
// Cells are read raw; numbers carrying a date or time format are rendered
// as "2006-01-02", "15:04" or "2006-01-02 15:04" whatever the workbook's
// display format, so "2/1/24" never reaches the dataset.
func ReadSpreadsheet(path, sheet string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			appLog.Error("spreadsheet close failed", cerr, "path", path)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("%w: workbook has no sheet", ErrUnreadable)
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if !slices.Contains(sheets, sheet) {
		return nil, nil, fmt.Errorf("%w: sheet %q not found", ErrUnreadable, sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: no header row", ErrUnreadable)
	}

	renderDateCells(f, sheet, rows)
	return rows[0], rows[1:], nil
}

// renderDateCells rewrites, in place, the numeric cells whose style is a
// date or time format.
func renderDateCells(f *excelize.File, sheet string, rows [][]string) {
	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	kinds := make(map[int]cellKind)
	for r, row := range rows {
		for c, v := range row {
			serial, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}
			styleID, err := f.GetCellStyle(sheet, cell)
			if err != nil {
				continue
			}
			kind, ok := kinds[styleID]
			if !ok {
				kind = styleKind(f, styleID)
				kinds[styleID] = kind
			}
			if kind == cellPlain {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, date1904)
			if err != nil {
				continue
			}
			rows[r][c] = formatCellTime(t.Round(time.Second), kind)
		}
	}
}

func formatCellTime(t time.Time, kind cellKind) string {
	switch kind {
	case cellDate:
		return t.Format("2006-01-02")
	case cellTime:
		return t.Format("15:04")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// styleKind classifies the number format of a cell style.
func styleKind(f *excelize.File, styleID int) cellKind {
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return cellPlain
	}
	if style.CustomNumFmt != nil {
		return formatKind(*style.CustomNumFmt)
	}
	return builtinFormatKind(style.NumFmt)
}

// builtinFormatKind covers the built-in date and time formats of ECMA-376
// 18.8.30.
func builtinFormatKind(id int) cellKind {
	switch {
	case id >= 14 && id <= 17:
		return cellDate
	case id >= 18 && id <= 21, id >= 45 && id <= 47:
		return cellTime
	case id == 22:
		return cellDateTime
	}
	return cellPlain
}

// formatKind classifies a custom number format code such as "dd/mm/yyyy"
// or "hh:mm". Quoted literals, escaped characters and bracketed sections
// (colors, locales) are ignored; an "m" is a month unless hours or seconds
// are present.
func formatKind(code string) cellKind {
	// Only the first section applies to positive numbers.
	if i := strings.IndexByte(code, ';'); i >= 0 {
		code = code[:i]
	}

	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			inQuote = ch != '"'
		case inBracket:
			if ch == ']' {
				inBracket = false
			} else if strings.IndexByte("hHsS", ch) >= 0 {
				// Elapsed time, e.g. [h]:mm.
				b.WriteByte(ch)
			}
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case ch == '\\':
			i++
		default:
			b.WriteByte(ch)
		}
	}

	tokens := strings.ToLower(b.String())
	hasTime := strings.ContainsAny(tokens, "hs")
	hasDate := strings.ContainsAny(tokens, "yd") || (strings.Contains(tokens, "m") && !hasTime)
	switch {
	case hasDate && hasTime:
		return cellDateTime
	case hasDate:
		return cellDate
	case hasTime:
		return cellTime
	}
	return cellPlain
}
