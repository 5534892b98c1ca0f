package models

import "time"

type ContactSubmission struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusReviewed ApplicationStatus = "reviewed"
)

// Preferred contact time slots a creator can pick on the application form.
const (
	ContactWeekdayMorning   = "weekday-morning"
	ContactWeekdayAfternoon = "weekday-afternoon"
	ContactWeekdayEvening   = "weekday-evening"
	ContactWeekendMorning   = "weekend-morning"
	ContactWeekendAfternoon = "weekend-afternoon"
	ContactWeekendEvening   = "weekend-evening"
)

var ContactTimeSlots = []string{
	ContactWeekdayMorning,
	ContactWeekdayAfternoon,
	ContactWeekdayEvening,
	ContactWeekendMorning,
	ContactWeekendAfternoon,
	ContactWeekendEvening,
}

func IsContactTimeSlot(s string) bool {
	for _, slot := range ContactTimeSlots {
		if slot == s {
			return true
		}
	}
	return false
}

type CreatorApplication struct {
	ID                    int               `db:"id" json:"id"`
	Name                  string            `db:"name" json:"name"`
	Email                 string            `db:"email" json:"email"`
	Portfolio             *string           `db:"portfolio" json:"portfolio,omitempty"`
	Message               string            `db:"message" json:"message"`
	PreferredContactTimes []string          `db:"preferred_contact_times" json:"preferred_contact_times"`
	Status                ApplicationStatus `db:"status" json:"status"`
	SubmittedAt           time.Time         `db:"submitted_at" json:"submitted_at"`
}
