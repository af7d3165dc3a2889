// internal/platform/yogiyo.go
package platform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "reviewdesk/internal/common/errors"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/models"
)

// Yogiyo reports a continuous star score (e.g. 4.5) and joins ordered
// menus into a single comma-separated summary string.
const yogiyoRawSchema = `{
	"type": "object",
	"properties": {
		"id": {"type": ["string", "number"]},
		"nickname": {"type": "string"},
		"star": {"type": "number"},
		"comment": {"type": "string"},
		"time": {"type": "string"},
		"menu_summary": {"type": "string"},
		"owner_reply": {"type": "object"}
	},
	"required": ["id"]
}`

var yogiyoSchema = gojsonschema.NewStringLoader(yogiyoRawSchema)

type yogiyoAdapter struct {
	log logger.Logger
}

func (a *yogiyoAdapter) Platform() models.Platform { return models.PlatformYogiyo }

func (a *yogiyoAdapter) MapToCanonical(raw map[string]interface{}) (*models.Review, error) {
	result, err := gojsonschema.Validate(yogiyoSchema, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, apperrors.NewRawPayloadInvalidError("yogiyo", err.Error())
	}
	if !result.Valid() {
		return nil, apperrors.NewRawPayloadInvalidError("yogiyo", fmt.Sprintf("%v", result.Errors()))
	}

	id := stringField(raw, "id")
	if id == "" {
		if n := floatField(raw, "id"); n > 0 {
			id = strconv.FormatInt(int64(n), 10)
		}
	}

	review := &models.Review{
		Platform:         models.PlatformYogiyo,
		PlatformReviewID: id,
		ReviewerName:     stringField(raw, "nickname"),
		Rating:           clampRating(floatField(raw, "star")),
		ReviewText:       stringField(raw, "comment"),
		OrderedItems:     []string{},
	}

	if summary := stringField(raw, "menu_summary"); summary != "" {
		for _, item := range strings.Split(summary, ",") {
			if item = strings.TrimSpace(item); item != "" {
				review.OrderedItems = append(review.OrderedItems, item)
			}
		}
	}

	date, ok := parseDate(stringField(raw, "time"), []string{
		"2006.01.02",
		"2006-01-02",
		"2006.01.02 15:04",
	})
	if !ok {
		a.log.Warn("unparseable review date, falling back to now", map[string]interface{}{
			"platform": "yogiyo",
			"reviewId": review.PlatformReviewID,
			"raw":      stringField(raw, "time"),
		})
	}
	review.ReviewDate = date

	if reply, ok := raw["owner_reply"].(map[string]interface{}); ok {
		review.ExistingReplyText = stringField(reply, "comment")
		review.ExistingFailureReason = stringField(reply, "fail_reason")
	}

	return review, nil
}
