package sitedata

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/oops"
)

func categoryStatsQuery(sb sq.StatementBuilderType) sq.SelectBuilder {
	return sb.
		Select(
			"category",
			"count(*) FILTER (WHERE status = 'active') AS active",
			"count(*) FILTER (WHERE status = 'unsubscribed') AS unsubscribed",
			"count(*) FILTER (WHERE status = 'pending') AS pending",
			"count(*) AS total",
		).
		From("subscribers").
		GroupBy("category").
		OrderBy("category")
}

func (s *Store) Stats(ctx context.Context) (*models.DashboardStats, error) {
	perCategory, err := queryBuilt[models.CategoryStats](ctx, s.conn, categoryStatsQuery(s.sb))
	if err != nil {
		return nil, oops.New(err, "failed to count subscribers")
	}

	stats := &models.DashboardStats{Categories: make([]models.CategoryStats, 0, len(models.AllCategories))}
	counted := map[models.Category]models.CategoryStats{}
	for _, c := range perCategory {
		counted[c.Category] = *c
		stats.TotalActive += c.Active
	}
	// Every category is reported, even ones with no subscribers yet.
	for _, category := range models.AllCategories {
		c, ok := counted[category]
		if !ok {
			c = models.CategoryStats{Category: category}
		}
		stats.Categories = append(stats.Categories, c)
	}

	counts := []struct {
		dest  *int64
		query string
	}{
		{&stats.ContactSubmissions, `SELECT count(*) FROM contact_submissions`},
		{&stats.CreatorApplications, `SELECT count(*) FROM creator_applications`},
		{&stats.PendingApplications, `SELECT count(*) FROM creator_applications WHERE status = 'pending'`},
		{&stats.Comments, `SELECT count(*) FROM comments`},
		{&stats.EmailsPending, `SELECT count(*) FROM scheduled_emails WHERE NOT sent`},
		{&stats.EmailsSent, `SELECT count(*) FROM scheduled_emails WHERE sent`},
	}
	for _, c := range counts {
		n, err := db.QueryOneScalar[int64](ctx, s.conn, c.query)
		if err != nil {
			return nil, oops.New(err, "failed to compute dashboard stats")
		}
		*c.dest = n
	}

	return stats, nil
}
