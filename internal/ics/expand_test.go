package ics

import (
	"testing"
	"time"
)

func weeklyEvent(uid, rule string, start time.Time) ParsedEvent {
	return ParsedEvent{
		UID:      uid,
		Summary:  "Cours",
		Location: "Salle 220",
		Start:    start,
		End:      start.Add(2 * time.Hour),
		RawRRule: rule,
	}
}

func TestExpandOccurrences_ExDate(t *testing.T) {
	start := time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC)
	ev := weeklyEvent("w", "FREQ=WEEKLY;COUNT=3", start)
	ev.ExDates = []time.Time{start.AddDate(0, 0, 7)}

	res := ExpandOccurrences([]ParsedEvent{ev}, ExpandConfig{})
	if len(res.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2", len(res.Events))
	}
	if !res.Events[0].Start.Equal(start) || !res.Events[1].Start.Equal(start.AddDate(0, 0, 14)) {
		t.Errorf("starts = %v, %v", res.Events[0].Start, res.Events[1].Start)
	}
	for _, inst := range res.Events {
		if inst.RawRRule != "" || inst.End.Sub(inst.Start) != 2*time.Hour {
			t.Errorf("instance = %+v", inst)
		}
	}
	if len(res.TruncatedEvents) != 0 {
		t.Errorf("TruncatedEvents = %v, want none", res.TruncatedEvents)
	}
}

func TestExpandOccurrences_Override(t *testing.T) {
	start := time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC)
	base := weeklyEvent("w", "FREQ=WEEKLY;COUNT=2", start)

	rid := start.AddDate(0, 0, 7)
	override := ParsedEvent{
		UID:        "w",
		Summary:    "Cours déplacé",
		Location:   "Salle 221",
		Start:      rid.Add(time.Hour),
		End:        rid.Add(3 * time.Hour),
		Recurrence: &rid,
		IsOverride: true,
	}

	res := ExpandOccurrences([]ParsedEvent{base, override}, ExpandConfig{})
	if len(res.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2", len(res.Events))
	}
	if got := res.Events[1]; got.Location != "Salle 221" || !got.Start.Equal(rid.Add(time.Hour)) {
		t.Errorf("second instance = %+v, want override", got)
	}
}

func TestExpandOccurrences_PassThroughAndInvalidRule(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	single := weeklyEvent("single", "", start)
	broken := weeklyEvent("broken", "FREQ=SOMETIMES", start)

	// An orphan override has no recurring base and is kept as-is.
	rid := start
	orphan := weeklyEvent("orphan", "", start)
	orphan.Recurrence = &rid
	orphan.IsOverride = true

	res := ExpandOccurrences([]ParsedEvent{single, broken, orphan}, ExpandConfig{})
	if len(res.Events) != 3 {
		t.Fatalf("len(Events) = %d, want 3", len(res.Events))
	}
	if res.Events[1].UID != "broken" || res.Events[1].RawRRule != "" {
		t.Errorf("broken rule instance = %+v", res.Events[1])
	}
}

func TestExpandOccurrences_HorizonAndCap(t *testing.T) {
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	daily := weeklyEvent("d", "FREQ=DAILY", start)

	res := ExpandOccurrences([]ParsedEvent{daily}, ExpandConfig{Horizon: 10*24*time.Hour - time.Minute})
	if len(res.Events) != 10 {
		t.Errorf("horizon-bounded len(Events) = %d, want 10", len(res.Events))
	}

	res = ExpandOccurrences([]ParsedEvent{daily}, ExpandConfig{Horizon: 30 * 24 * time.Hour, MaxOccurrencesPerEvent: 5})
	if len(res.Events) != 5 {
		t.Errorf("capped len(Events) = %d, want 5", len(res.Events))
	}
	if len(res.TruncatedEvents) != 1 || res.TruncatedEvents[0] != "d" {
		t.Errorf("TruncatedEvents = %v, want [d]", res.TruncatedEvents)
	}
}
