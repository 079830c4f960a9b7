package schedule

import (
	"errors"
	"strings"
	"testing"
	"time"

	"planynov/internal/ics"
	"planynov/internal/model"
)

// calendar wraps VEVENT bodies into a CRLF-terminated VCALENDAR.
func calendar(events ...string) []byte {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//planynov//test//FR"}
	for _, ev := range events {
		lines = append(lines, "BEGIN:VEVENT")
		lines = append(lines, strings.Split(strings.TrimSpace(ev), "\n")...)
		lines = append(lines, "END:VEVENT")
	}
	lines = append(lines, "END:VCALENDAR")
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

var utcOptions = CalendarOptions{Location: time.UTC}

func TestParseCalendar_RoomEvent(t *testing.T) {
	body := calendar(`
UID:algo-1
DTSTART:20240110T090000Z
DTEND:20240110T110000Z
SUMMARY:Algorithms
DESCRIPTION:Dr. Smith
LOCATION:Room 101\, Building A`)

	res, err := ParseCalendar(ics.Source{ID: "test"}, body, utcOptions)
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(res.Records))
	}

	want := model.OccupancyRecord{
		RoomName:       "S101",
		Floor:          1,
		OccupationDate: "2024-01-10",
		StartTime:      "09:00",
		EndTime:        "11:00",
		ClassName:      "Algorithms",
		InstructorName: "Dr. Smith",
	}
	if got := res.Records[0]; got != want {
		t.Errorf("Records[0] = %+v, want %+v", got, want)
	}
}

func TestParseCalendar_PlaceholdersAndDroppedEvents(t *testing.T) {
	body := calendar(`
UID:no-text
DTSTART:20240111T130000Z
DTEND:20240111T140000Z
LOCATION:Salle 7`, `
UID:no-room
DTSTART:20240111T080000Z
DTEND:20240111T090000Z
SUMMARY:Réunion
LOCATION:Amphithéâtre A`, `
UID:no-location
DTSTART:20240111T100000Z
DTEND:20240111T110000Z
SUMMARY:Libre`, `
UID:lettered
DTSTART:20240112T150000Z
DTEND:20240112T163000Z
SUMMARY:TP Chimie
LOCATION:Salle S204`)

	res, err := ParseCalendar(ics.Source{ID: "test"}, body, utcOptions)
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2: %+v", len(res.Records), res.Records)
	}

	first := res.Records[0]
	if first.RoomName != "S007" || first.Floor != 7 {
		t.Errorf("Records[0] room = %q floor %d, want S007 floor 7", first.RoomName, first.Floor)
	}
	if first.ClassName != model.UnspecifiedClass || first.InstructorName != model.UnspecifiedInstructor {
		t.Errorf("Records[0] texts = %q / %q, want placeholders", first.ClassName, first.InstructorName)
	}

	second := res.Records[1]
	if second.RoomName != "S204" || second.Floor != 2 || second.EndTime != "16:30" {
		t.Errorf("Records[1] = %+v", second)
	}
}

func TestParseCalendar_SkipsBrokenEvent(t *testing.T) {
	body := calendar(`
UID:broken
DTSTART:not-a-date
DTEND:20240110T110000Z
SUMMARY:Broken
LOCATION:Salle 300`, `
UID:ok
DTSTART:20240110T090000Z
DTEND:20240110T110000Z
SUMMARY:Fine
LOCATION:Salle 301`)

	res, err := ParseCalendar(ics.Source{ID: "test"}, body, utcOptions)
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].RoomName != "S301" {
		t.Errorf("Records = %+v, want only S301", res.Records)
	}
}

func TestParseCalendar_DurationInsteadOfEnd(t *testing.T) {
	body := calendar(`
UID:duration
DTSTART:20240110T090000Z
DURATION:PT2H
SUMMARY:Algorithms
LOCATION:Salle 101`)

	res, err := ParseCalendar(ics.Source{ID: "test"}, body, utcOptions)
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(res.Records))
	}
	if got := res.Records[0]; got.RoomName != "S101" || got.StartTime != "09:00" || got.EndTime != "11:00" {
		t.Errorf("Records[0] = %+v, want S101 09:00-11:00", got)
	}
}

func TestParseCalendar_DisplayTimezone(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	body := calendar(`
UID:tz
DTSTART:20240110T230000Z
DTEND:20240110T233000Z
SUMMARY:Late
LOCATION:Salle 110`)

	res, err := ParseCalendar(ics.Source{ID: "test"}, body, CalendarOptions{Location: paris})
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	got := res.Records[0]
	if got.OccupationDate != "2024-01-11" || got.StartTime != "00:00" || got.EndTime != "00:30" {
		t.Errorf("record = %+v, want 2024-01-11 00:00-00:30", got)
	}
}

func TestParseCalendar_Recurrences(t *testing.T) {
	body := calendar(`
UID:weekly
DTSTART:20240108T080000Z
DTEND:20240108T100000Z
RRULE:FREQ=WEEKLY;COUNT=3
EXDATE:20240115T080000Z
SUMMARY:Cours hebdo
LOCATION:Salle 220`)

	collapsed, err := ParseCalendar(ics.Source{ID: "test"}, body, utcOptions)
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	if len(collapsed.Records) != 1 {
		t.Errorf("without expansion len(Records) = %d, want 1", len(collapsed.Records))
	}

	opts := utcOptions
	opts.ExpandRecurrences = true
	expanded, err := ParseCalendar(ics.Source{ID: "test"}, body, opts)
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	var dates []string
	for _, r := range expanded.Records {
		dates = append(dates, r.OccupationDate)
	}
	if strings.Join(dates, ",") != "2024-01-08,2024-01-22" {
		t.Errorf("expanded dates = %v, want [2024-01-08 2024-01-22]", dates)
	}
}

func TestParseCalendar_Unreadable(t *testing.T) {
	for name, body := range map[string][]byte{
		"empty":       nil,
		"not ics":     []byte("NomSalle,Date\nS1,2024-01-01\n"),
		"binary junk": {0x00, 0x01, 0xff, 0xfe},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCalendar(ics.Source{ID: name}, body, utcOptions)
			if !errors.Is(err, ErrUnreadable) {
				t.Errorf("ParseCalendar() error = %v, want ErrUnreadable", err)
			}
		})
	}
}

func TestParseCalendar_NoEvents(t *testing.T) {
	res, err := ParseCalendar(ics.Source{ID: "empty"}, calendar(), utcOptions)
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	if res.Records == nil || len(res.Records) != 0 {
		t.Errorf("Records = %#v, want empty non-nil slice", res.Records)
	}
}
