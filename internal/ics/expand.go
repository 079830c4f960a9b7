package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "planynov/internal/log"
)

const (
	defaultMaxOccurrencesPerEvent = 500
	defaultHorizon                = 180 * 24 * time.Hour
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Horizon bounds expansion of each recurring event to
	// [DTSTART, DTSTART+Horizon]. Zero means defaultHorizon.
	Horizon time.Duration

	// MaxOccurrencesPerEvent is a safety cap for open-ended rules. Zero
	// means defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded events and information about truncation.
type ExpandResult struct {
	// Events holds one entry per concrete occurrence, in input order.
	// Expanded instances have RawRRule cleared.
	Events []ParsedEvent
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences turns every RRULE event into one ParsedEvent per
// instance, honoring EXDATE and RECURRENCE-ID overrides. Non-recurring
// events pass through unchanged. An RRULE that cannot be parsed keeps its
// first instance only.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) ExpandResult {
	var result ExpandResult

	if cfg.Horizon <= 0 {
		cfg.Horizon = defaultHorizon
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Overrides only replace instances of a recurring base with the same UID.
	recurringUIDs := make(map[string]bool)
	for _, ev := range events {
		if ev.RawRRule != "" && ev.UID != "" {
			recurringUIDs[ev.UID] = true
		}
	}
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil && recurringUIDs[ev.UID] {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		}
	}

	out := make([]ParsedEvent, 0, len(events))
	for _, ev := range events {
		if ev.IsOverride && recurringUIDs[ev.UID] {
			// Emitted in place of the matching instance below.
			continue
		}
		if ev.RawRRule == "" {
			out = append(out, ev)
			continue
		}

		occ, hitCap := expandRecurringEvent(ev, overridesByUID[ev.UID], cfg)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		out = append(out, occ...)
	}

	result.Events = out
	return result
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]ParsedEvent, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		single := ev
		single.RawRRule = ""
		return []ParsedEvent{single}, false
	}

	// Ensure Dtstart is set to the event's DTSTART.
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	occTimes := set.Between(ev.Start, ev.Start.Add(cfg.Horizon), true)
	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]ParsedEvent, 0, len(occTimes))
	for _, occStart := range occTimes {
		inst := ev
		inst.RawRRule = ""
		inst.ExDates = nil
		inst.Start = occStart
		inst.End = occStart.Add(dur)

		if o, ok := findOverrideForStart(overrides, occStart); ok {
			inst = o
		}
		out = append(out, inst)
	}

	return out, hitCap
}

// findOverrideForStart finds an override event whose RECURRENCE-ID matches
// the given instance start with exact time equality.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}
