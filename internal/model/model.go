package model

// Placeholders used when a calendar event carries no SUMMARY / DESCRIPTION.
const (
	UnspecifiedClass      = "Cours non spécifié"
	UnspecifiedInstructor = "Non spécifié"
)

// OccupancyRecord is one room booked for a class on a given date and time
// range. Every record that reaches the store has passed validation: all
// string fields except InstructorName are non-empty.
//
// JSON keys follow the contract of the 3D visualiser front-end.
type OccupancyRecord struct {
	RoomName       string `json:"NomSalle"`
	Floor          int    `json:"Etage"`
	OccupationDate string `json:"DateOccupation"`
	StartTime      string `json:"HeureDebut"`
	EndTime        string `json:"HeureFin"`
	ClassName      string `json:"NomClasse"`
	InstructorName string `json:"NomIntervenant"`
}

// Stats is an aggregate view over a dataset.
type Stats struct {
	TotalEvents int   `json:"total_events"`
	UniqueRooms int   `json:"unique_rooms"`
	Floors      []int `json:"floors"`
}
