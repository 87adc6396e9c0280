package email

const (
	subjectEscalationFmt       = "Gesprek overgedragen: %s"
	subjectBookingConfirmedFmt = "Afspraak bevestigd: %s"
)
