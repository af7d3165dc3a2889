// internal/composer/prompt.go
package composer

import (
	"fmt"
	"strings"

	"reviewdesk/internal/models"
)

// forbiddenPhrases returns phrasing the reply must never use for the
// store's operation type. A delivery-only store inviting the reviewer to
// visit reads as copy-pasted and gets reported.
func forbiddenPhrases(op models.OperationType) []string {
	switch op {
	case models.OperationDeliveryOnly:
		return []string{"방문해 주세요", "매장에서 뵙", "찾아와 주세요", "가게에 들러"}
	case models.OperationDineInOnly:
		return []string{"배달", "라이더", "배송"}
	case models.OperationTakeoutOnly:
		return []string{"배달", "매장에서 드실"}
	default:
		return nil
	}
}

func toneInstruction(t models.Tone) string {
	switch t {
	case models.ToneFormal:
		return "정중하고 격식 있는 존댓말을 사용하세요."
	case models.ToneCasual:
		return "가볍고 편안한 말투를 사용하되 존댓말은 유지하세요."
	default:
		return "따뜻하고 친근한 존댓말을 사용하세요."
	}
}

// buildSystemPrompt encodes the store voice, length bounds and
// operation-type constraints.
func buildSystemPrompt(profile models.StoreProfile) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("당신은 %s '%s'의 사장님입니다. 고객 리뷰에 대한 답글 본문만 작성하세요.",
		businessTypeOrDefault(profile), profile.StoreName))
	parts = append(parts, toneInstruction(profile.Tone))
	parts = append(parts, fmt.Sprintf("답글 본문은 %d자 이상 %d자 이하로 작성하세요.",
		profile.MinReplyLength, profile.MaxReplyLength))
	parts = append(parts, "인사말과 맺음말은 별도로 붙으니 본문만 쓰세요.")

	if phrases := forbiddenPhrases(profile.OperationType); len(phrases) > 0 {
		parts = append(parts, fmt.Sprintf("다음 표현은 절대 사용하지 마세요: %s.", strings.Join(phrases, ", ")))
	}

	if len(profile.SEOKeywords) > 0 {
		parts = append(parts, fmt.Sprintf("자연스럽다면 다음 키워드 중 하나를 녹여 쓰세요: %s.",
			strings.Join(profile.SEOKeywords, ", ")))
	}

	return strings.Join(parts, "\n")
}

// buildUserPrompt encodes the review itself plus sentiment-appropriate
// guidance.
func buildUserPrompt(review models.Review, analysis models.ReviewAnalysis, reviewerName string) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("고객 이름: %s", reviewerName))
	if review.HasRating() {
		parts = append(parts, fmt.Sprintf("별점: %d/5", review.Rating))
	} else {
		parts = append(parts, "별점: 없음")
	}
	if len(review.OrderedItems) > 0 {
		parts = append(parts, fmt.Sprintf("주문 메뉴: %s", strings.Join(review.OrderedItems, ", ")))
	}
	if review.ReviewText != "" {
		parts = append(parts, fmt.Sprintf("리뷰 내용: %q", review.ReviewText))
	} else {
		parts = append(parts, "리뷰 내용: (텍스트 없음)")
	}

	switch analysis.Sentiment {
	case models.SentimentNegative:
		parts = append(parts, "지침: 먼저 진심으로 사과하고, 변명 없이 개선 의지를 전하세요. 보상을 약속하지 마세요.")
	case models.SentimentPositive:
		parts = append(parts, "지침: 구체적으로 감사를 표현하고, 언급된 메뉴가 있다면 자연스럽게 한 번 더 언급하세요.")
	default:
		parts = append(parts, "지침: 담백하게 감사를 전하고, 아쉬운 점이 있었다면 귀 기울이겠다고 전하세요.")
	}

	parts = append(parts, "답글 본문:")

	return strings.Join(parts, "\n")
}

func businessTypeOrDefault(profile models.StoreProfile) string {
	if profile.BusinessType != "" {
		return profile.BusinessType
	}
	return "음식점"
}
