package models

import "time"

type Comment struct {
	ID        int       `db:"id" json:"id"`
	PostSlug  string    `db:"post_slug" json:"post_slug"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"-"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

var Reactions = []string{"like", "love", "insightful", "celebrate"}

func IsReaction(s string) bool {
	for _, r := range Reactions {
		if r == s {
			return true
		}
	}
	return false
}

type ReactionCount struct {
	Reaction string `db:"reaction" json:"reaction"`
	Count    int64  `db:"count" json:"count"`
}

type AnalyticsEvent struct {
	ID        int            `db:"id" json:"id"`
	EventName string         `db:"event_name" json:"event_name"`
	Path      string         `db:"path" json:"path"`
	Metadata  map[string]any `db:"metadata" json:"metadata"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
