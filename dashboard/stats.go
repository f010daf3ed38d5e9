package dashboard

import (
	"context"
	"fmt"
	"time"

	"gcx-supplier-go/database"
	"gcx-supplier-go/models"

	"gorm.io/gorm"
)

type RecentApplication struct {
	ID           uint          `json:"id"`
	TrackingCode string        `json:"tracking_code"`
	BusinessName string        `json:"business_name"`
	Status       models.Status `json:"status"`
	Region       string        `json:"region,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

type Snapshot struct {
	TotalApplications  int64                     `json:"total_applications"`
	StatusCounts       map[models.Status]int64   `json:"status_counts"`
	StatusPercentages  map[models.Status]float64 `json:"status_percentages"`
	RecentApplications []RecentApplication       `json:"recent_applications"`
	Timestamp          time.Time                 `json:"timestamp"`
}

const recentLimit = 5

// Percentages converts counts to shares rounded to one decimal. The
// largest share absorbs the rounding error so the total is exactly 100.
func Percentages(counts map[models.Status]int64) map[models.Status]float64 {
	out := make(map[models.Status]float64, len(models.Statuses))
	var total int64
	for _, s := range models.Statuses {
		out[s] = 0
		total += counts[s]
	}
	if total == 0 {
		return out
	}

	// Work in tenths of a percent to keep the arithmetic exact.
	tenths := make(map[models.Status]int64, len(models.Statuses))
	var sum int64
	var largest models.Status
	for _, s := range models.Statuses {
		tenths[s] = (counts[s]*2000 + total) / (2 * total)
		sum += tenths[s]
		if largest == "" || tenths[s] > tenths[largest] {
			largest = s
		}
	}
	tenths[largest] += 1000 - sum

	for s, t := range tenths {
		out[s] = float64(t) / 10
	}
	return out
}

// BuildSnapshot reads the current dashboard figures.
func BuildSnapshot(ctx context.Context, db *gorm.DB, now time.Time) (*Snapshot, error) {
	counts, err := database.StatusCounts(ctx, db)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		StatusCounts:       counts,
		StatusPercentages:  Percentages(counts),
		RecentApplications: []RecentApplication{},
		Timestamp:          now.UTC(),
	}
	for _, c := range counts {
		snap.TotalApplications += c
	}

	var recent []models.SupplierApplication
	if err := db.WithContext(ctx).Preload("Region").
		Order("created_at DESC, id DESC").
		Limit(recentLimit).
		Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("load recent applications: %w", err)
	}
	for _, app := range recent {
		r := RecentApplication{
			ID:           app.ID,
			TrackingCode: app.TrackingCode,
			BusinessName: app.BusinessName,
			Status:       app.Status,
			CreatedAt:    app.CreatedAt,
		}
		if app.Region != nil {
			r.Region = app.Region.Name
		}
		snap.RecentApplications = append(snap.RecentApplications, r)
	}
	return snap, nil
}
