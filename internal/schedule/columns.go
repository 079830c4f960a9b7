package schedule

import (
	"fmt"
	"strings"
)

// Field is a canonical column of a tabular schedule.
type Field string

const (
	FieldRoom       Field = "room"
	FieldFloor      Field = "floor"
	FieldDate       Field = "date"
	FieldStart      Field = "start"
	FieldEnd        Field = "end"
	FieldClass      Field = "class"
	FieldInstructor Field = "instructor"
)

// ColumnSpec maps a canonical field to the header spellings accepted for it.
// The first alias is the canonical header name shown to users.
type ColumnSpec struct {
	Field    Field
	Aliases  []string
	Required bool
}

// Name is the canonical header for the column.
func (c ColumnSpec) Name() string {
	return c.Aliases[0]
}

// Columns is the alias table, resolved once per file. Aliases are matched
// exactly against trimmed header cells; the first alias present wins.
var Columns = []ColumnSpec{
	{Field: FieldRoom, Aliases: []string{"NomSalle", "Salle", "Room", "salle"}, Required: true},
	{Field: FieldFloor, Aliases: []string{"Etage", "Floor", "etage"}},
	{Field: FieldDate, Aliases: []string{"DateOccupation", "Date", "date"}, Required: true},
	{Field: FieldStart, Aliases: []string{"HeureDebut", "Start", "Début", "heure_debut"}, Required: true},
	{Field: FieldEnd, Aliases: []string{"HeureFin", "End", "Fin", "heure_fin"}, Required: true},
	{Field: FieldClass, Aliases: []string{"NomClasse", "Classe", "Course", "classe"}, Required: true},
	{Field: FieldInstructor, Aliases: []string{"NomIntervenant", "Intervenant", "Teacher", "intervenant"}},
}

// ColumnsError reports required columns absent from a file header.
type ColumnsError struct {
	Missing []ColumnSpec
}

func (e *ColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Names(), ", ")
}

// Names lists the canonical names of the missing columns.
func (e *ColumnsError) Names() []string {
	out := make([]string, 0, len(e.Missing))
	for _, c := range e.Missing {
		out = append(out, c.Name())
	}
	return out
}

// Describe lists each missing column with the header spellings it accepts,
// e.g. "NomClasse (Classe, Course, classe)".
func (e *ColumnsError) Describe() []string {
	out := make([]string, 0, len(e.Missing))
	for _, c := range e.Missing {
		if len(c.Aliases) > 1 {
			out = append(out, fmt.Sprintf("%s (%s)", c.Name(), strings.Join(c.Aliases[1:], ", ")))
		} else {
			out = append(out, c.Name())
		}
	}
	return out
}

// columnIndex holds, per field, the position of the resolved header cell.
// Fields absent from the header are absent from the map.
type columnIndex map[Field]int

// resolveColumns matches a header row against the alias table.
func resolveColumns(header []string) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}

	idx := make(columnIndex, len(Columns))
	var missing []ColumnSpec
	for _, spec := range Columns {
		found := false
		for _, alias := range spec.Aliases {
			if pos, ok := positions[alias]; ok {
				idx[spec.Field] = pos
				found = true
				break
			}
		}
		if !found && spec.Required {
			missing = append(missing, spec)
		}
	}

	if len(missing) > 0 {
		return nil, &ColumnsError{Missing: missing}
	}
	return idx, nil
}

// value returns the trimmed cell for field, or "" when the column is absent
// or the row is short.
func (idx columnIndex) value(row []string, field Field) string {
	pos, ok := idx[field]
	if !ok || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}
