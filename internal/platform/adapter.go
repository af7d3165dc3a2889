// Package platform normalizes raw per-platform review payloads into the
// canonical Review. The untyped-to-typed conversion happens here and only
// here; everything downstream sees models.Review.
package platform

import (
	"context"
	"math"
	"time"

	apperrors "reviewdesk/internal/common/errors"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/models"
)

// Crawler supplies raw review payloads for one platform. The browser
// automation that produces them lives outside this repository.
type Crawler interface {
	FetchReviews(ctx context.Context, storeID string, limit int) ([]map[string]interface{}, error)
}

// Adapter converts one platform's raw payload into a canonical Review.
type Adapter interface {
	Platform() models.Platform
	MapToCanonical(raw map[string]interface{}) (*models.Review, error)
}

// New returns the adapter for a platform.
func New(p models.Platform, log logger.Logger) (Adapter, error) {
	switch p {
	case models.PlatformBaemin:
		return &baeminAdapter{log: log}, nil
	case models.PlatformYogiyo:
		return &yogiyoAdapter{log: log}, nil
	case models.PlatformCoupangEats:
		return &coupangEatsAdapter{log: log}, nil
	default:
		return nil, apperrors.NewUnknownPlatformError(string(p))
	}
}

// FetchByStore fetches raw reviews through the crawler and maps each to the
// canonical form. A single malformed record is skipped and logged; it never
// aborts the whole fetch.
func FetchByStore(ctx context.Context, c Crawler, a Adapter, storeID string, limit int, log logger.Logger) ([]models.Review, error) {
	raws, err := c.FetchReviews(ctx, storeID, limit)
	if err != nil {
		return nil, apperrors.NewFetchFailedError(string(a.Platform()), err)
	}

	reviews := make([]models.Review, 0, len(raws))
	for i, raw := range raws {
		review, err := a.MapToCanonical(raw)
		if err != nil {
			log.Warn("skipping malformed review payload", map[string]interface{}{
				"platform": string(a.Platform()),
				"storeId":  storeID,
				"index":    i,
				"error":    err.Error(),
			})
			continue
		}
		review.PlatformStoreID = storeID
		reviews = append(reviews, *review)
	}

	return reviews, nil
}

// clampRating normalizes a possibly-continuous platform score to the 1-5
// integer scale: round half up, then clamp. A zero or negative score means
// the platform reported no rating.
func clampRating(v float64) int {
	if v <= 0 {
		return 0
	}
	r := int(math.Floor(v + 0.5))
	if r < 1 {
		r = 1
	}
	if r > 5 {
		r = 5
	}
	return r
}

// parseDate tries each layout in order. When all fail it falls back to the
// current date; the caller logs the loss.
func parseDate(value string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Now(), false
}

func stringField(raw map[string]interface{}, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func floatField(raw map[string]interface{}, key string) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func stringSlice(raw map[string]interface{}, key string) []string {
	out := []string{}
	items, ok := raw[key].([]interface{})
	if !ok {
		return out
	}
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
