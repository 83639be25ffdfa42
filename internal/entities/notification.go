package entities

// NotificationData feeds the email and SMS templates.
type NotificationData struct {
	FullName           string
	ReservationID      string
	LotName            string
	NumberPlate        string
	VehicleType        string
	StartTimeFormatted string
	EndTimeFormatted   string
	AmountFormatted    string
	CurrentYear        int
}
