package models

type CategoryStats struct {
	Category     Category `db:"category" json:"category"`
	Active       int64    `db:"active" json:"active"`
	Unsubscribed int64    `db:"unsubscribed" json:"unsubscribed"`
	Pending      int64    `db:"pending" json:"pending"`
	Total        int64    `db:"total" json:"total"`
}

type DashboardStats struct {
	Categories          []CategoryStats `json:"categories"`
	TotalActive         int64           `json:"total_active"`
	ContactSubmissions  int64           `json:"contact_submissions"`
	CreatorApplications int64           `json:"creator_applications"`
	PendingApplications int64           `json:"pending_applications"`
	Comments            int64           `json:"comments"`
	EmailsPending       int64           `json:"emails_pending"`
	EmailsSent          int64           `json:"emails_sent"`
}
