package schedule

import (
	"fmt"
	"strings"
	"time"

	"planynov/internal/ics"
	appLog "planynov/internal/log"
	"planynov/internal/model"
)

// CalendarOptions tunes how calendar events become occupancy records.
type CalendarOptions struct {
	// Location is the display timezone for dates and times. Nil means
	// time.Local.
	Location *time.Location

	// ExpandRecurrences turns RRULE events into one record per instance.
	// When false every VEVENT yields at most one record.
	ExpandRecurrences bool
	Expand            ics.ExpandConfig
}

// ParseCalendar parses an iCalendar payload into occupancy records. Events
// whose location carries no room code are dropped; a payload that is not a
// calendar fails with ErrUnreadable.
func ParseCalendar(src ics.Source, body []byte, opts CalendarOptions) (Result, error) {
	events, err := ics.ParseICS(src, body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	if opts.ExpandRecurrences {
		expanded := ics.ExpandOccurrences(events, opts.Expand)
		events = expanded.Events
	}

	recs := EventsToRecords(events, opts.Location)
	appLog.Info("calendar events normalized", "id", src.ID, "events", len(events), "records", len(recs))
	return Result{Records: recs}, nil
}

// EventsToRecords maps events to records, skipping events without a room.
func EventsToRecords(events []ics.ParsedEvent, loc *time.Location) []model.OccupancyRecord {
	if loc == nil {
		loc = time.Local
	}

	recs := make([]model.OccupancyRecord, 0, len(events))
	for _, ev := range events {
		code, ok := ExtractRoomCode(ev.Location)
		if !ok {
			appLog.Debug("calendar event without room skipped", "uid", ev.UID, "location", ev.Location)
			continue
		}
		recs = append(recs, eventRecord(ev, code, loc))
	}
	return recs
}

func eventRecord(ev ics.ParsedEvent, code string, loc *time.Location) model.OccupancyRecord {
	start := ev.Start.In(loc)
	end := ev.End.In(loc)

	// No digit in the code: ground floor.
	floor, _ := InferFloor(code)

	rec := model.OccupancyRecord{
		RoomName:       RoomName(code),
		Floor:          floor,
		OccupationDate: start.Format("2006-01-02"),
		StartTime:      start.Format("15:04"),
		EndTime:        end.Format("15:04"),
		ClassName:      strings.TrimSpace(ev.Summary),
		InstructorName: strings.TrimSpace(ev.Description),
	}
	if rec.ClassName == "" {
		rec.ClassName = model.UnspecifiedClass
	}
	if rec.InstructorName == "" {
		rec.InstructorName = model.UnspecifiedInstructor
	}
	return rec
}
