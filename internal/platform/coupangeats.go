// internal/platform/coupangeats.go
package platform

import (
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	apperrors "reviewdesk/internal/common/errors"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/models"
)

const coupangEatsRawSchema = `{
	"type": "object",
	"properties": {
		"orderReviewId": {"type": "string", "minLength": 1},
		"customerName": {"type": "string"},
		"rating": {"type": "number"},
		"reviewText": {"type": "string"},
		"createdAt": {"type": "string"},
		"orderedItems": {"type": "array"},
		"merchantReply": {"type": "string"},
		"replyFailure": {"type": "string"}
	},
	"required": ["orderReviewId"]
}`

var coupangEatsSchema = gojsonschema.NewStringLoader(coupangEatsRawSchema)

type coupangEatsAdapter struct {
	log logger.Logger
}

func (a *coupangEatsAdapter) Platform() models.Platform { return models.PlatformCoupangEats }

func (a *coupangEatsAdapter) MapToCanonical(raw map[string]interface{}) (*models.Review, error) {
	result, err := gojsonschema.Validate(coupangEatsSchema, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, apperrors.NewRawPayloadInvalidError("coupangeats", err.Error())
	}
	if !result.Valid() {
		return nil, apperrors.NewRawPayloadInvalidError("coupangeats", fmt.Sprintf("%v", result.Errors()))
	}

	review := &models.Review{
		Platform:              models.PlatformCoupangEats,
		PlatformReviewID:      stringField(raw, "orderReviewId"),
		ReviewerName:          stringField(raw, "customerName"),
		Rating:                clampRating(floatField(raw, "rating")),
		ReviewText:            stringField(raw, "reviewText"),
		OrderedItems:          stringSlice(raw, "orderedItems"),
		ExistingReplyText:     stringField(raw, "merchantReply"),
		ExistingFailureReason: stringField(raw, "replyFailure"),
	}

	date, ok := parseDate(stringField(raw, "createdAt"), []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	})
	if !ok {
		a.log.Warn("unparseable review date, falling back to now", map[string]interface{}{
			"platform": "coupangeats",
			"reviewId": review.PlatformReviewID,
			"raw":      stringField(raw, "createdAt"),
		})
	}
	review.ReviewDate = date

	return review, nil
}
