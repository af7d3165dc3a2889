// internal/platform/baemin.go
package platform

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	apperrors "reviewdesk/internal/common/errors"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/models"
)

// baeminRawSchema is the minimum shape a Baemin crawler payload must have.
// Optional fields (menus, reply) default to empty rather than failing.
const baeminRawSchema = `{
	"type": "object",
	"properties": {
		"review_id": {"type": "string", "minLength": 1},
		"member_name": {"type": "string"},
		"rating": {"type": "number"},
		"contents": {"type": "string"},
		"created_at": {"type": "string"},
		"menus": {"type": "array"},
		"reply": {"type": "object"}
	},
	"required": ["review_id"]
}`

var baeminSchema = gojsonschema.NewStringLoader(baeminRawSchema)

type baeminAdapter struct {
	log logger.Logger
}

func (a *baeminAdapter) Platform() models.Platform { return models.PlatformBaemin }

func (a *baeminAdapter) MapToCanonical(raw map[string]interface{}) (*models.Review, error) {
	result, err := gojsonschema.Validate(baeminSchema, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, apperrors.NewRawPayloadInvalidError("baemin", err.Error())
	}
	if !result.Valid() {
		return nil, apperrors.NewRawPayloadInvalidError("baemin", fmt.Sprintf("%v", result.Errors()))
	}

	review := &models.Review{
		Platform:         models.PlatformBaemin,
		PlatformReviewID: stringField(raw, "review_id"),
		ReviewerName:     stringField(raw, "member_name"),
		Rating:           clampRating(floatField(raw, "rating")),
		ReviewText:       stringField(raw, "contents"),
		OrderedItems:     []string{},
	}

	// Baemin lists ordered menus as objects with a name field.
	if menus, ok := raw["menus"].([]interface{}); ok {
		for _, m := range menus {
			if menu, ok := m.(map[string]interface{}); ok {
				if name := stringField(menu, "name"); name != "" {
					review.OrderedItems = append(review.OrderedItems, name)
				}
			}
		}
	}

	date, ok := parseDate(stringField(raw, "created_at"), []string{
		"2006-01-02 15:04:05",
		"2006-01-02",
	})
	if !ok {
		a.log.Warn("unparseable review date, falling back to now", map[string]interface{}{
			"platform": "baemin",
			"reviewId": review.PlatformReviewID,
			"raw":      stringField(raw, "created_at"),
		})
	}
	review.ReviewDate = date

	if reply, ok := raw["reply"].(map[string]interface{}); ok {
		review.ExistingReplyText = stringField(reply, "contents")
		review.ExistingFailureReason = stringField(reply, "fail_reason")
	}

	return review, nil
}
