package models

// ServiceHours - jam layanan dari env QUEUE_OPEN_TIME / QUEUE_CLOSE_TIME
type ServiceHours struct {
	JamBuka  string `json:"jam_buka"`  // format: "HH:MM:SS"
	JamTutup string `json:"jam_tutup"` // format: "HH:MM:SS"
	Timezone string `json:"timezone"`
}
