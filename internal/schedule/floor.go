package schedule

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// roomMarkers are the words that introduce a room code inside a free-text
// location ("Salle 101", "Room 204, Building A"). Markers are tried in
// order.
var roomMarkers = []string{"Salle", "Room"}

// defaultRoomLetter prefixes purely numeric room codes.
const defaultRoomLetter = "S"

// InferFloor returns the floor encoded in a room code: the value of the first
// digit of the first run of decimal digits. ok is false when the code has no
// digit at all.
//
//	"S101" -> 1, "007" -> 0, "S25" -> 2, "Amphi0" -> 0, "Hall" -> undefined
//
// The convention is fixed; there is no per-building lookup table.
func InferFloor(code string) (floor int, ok bool) {
	for _, r := range code {
		if r >= '0' && r <= '9' {
			return int(r - '0'), true
		}
	}
	return 0, false
}

// ExtractRoomCode finds the token that follows a room marker word in a
// calendar location. Trailing punctuation is dropped so that
// "Room 101, Building A" yields "101".
func ExtractRoomCode(location string) (string, bool) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", false
	}

	fields := strings.Fields(location)
	for _, marker := range roomMarkers {
		for i, f := range fields {
			if strings.TrimRight(f, ":") != marker || i+1 >= len(fields) {
				continue
			}
			code := strings.TrimRight(fields[i+1], ",;:.)")
			if code != "" {
				return code, true
			}
		}
	}
	return "", false
}

// RoomName turns a raw room code into the canonical room name: a room-type
// letter followed by the numeric part left-padded to three digits.
//
//	"101" -> "S101", "7" -> "S007", "A12" -> "A012", "Amphi" -> "SAmphi"
func RoomName(code string) string {
	prefixEnd := strings.IndexFunc(code, func(r rune) bool { return !unicode.IsLetter(r) })
	if prefixEnd < 0 {
		// Letters only, nothing to pad.
		return defaultRoomLetter + code
	}

	prefix, rest := code[:prefixEnd], code[prefixEnd:]
	if prefix == "" {
		prefix = defaultRoomLetter
	}

	digitsEnd := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
	if digitsEnd < 0 {
		digitsEnd = len(rest)
	}
	if digitsEnd > 0 && digitsEnd < 3 {
		rest = strings.Repeat("0", 3-digitsEnd) + rest
	}
	return prefix + rest
}

// stripRoomLetter removes a single leading room-type letter from a room name
// ("S007" -> "007"). Names that start with a digit are returned unchanged.
func stripRoomLetter(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size > 0 && unicode.IsLetter(r) {
		return name[size:]
	}
	return name
}
