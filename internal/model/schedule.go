package model

// Weekday is a day of the week the shop may open on.  Enabled days are
// shown to clients together with their working hours.
type Weekday struct {
	ID      uint64 // weekdays.id
	Day     string // weekdays.day (Lunes, Martes, …)
	Enabled bool   // weekdays.status
}

// WorkingHours is one opening interval of a weekday.  A weekday may own
// several intervals (e.g. morning and afternoon shifts).  The intervals are
// published for display only; bookings outside them are not rejected.
type WorkingHours struct {
	ID        uint64 // working_hours.id
	WeekdayID uint64 // working_hours.weekday_id
	StartTime string // working_hours.start_time (HH:MM:SS)
	EndTime   string // working_hours.end_time (HH:MM:SS)
}
