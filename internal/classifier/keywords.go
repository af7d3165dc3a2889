// internal/classifier/keywords.go
package classifier

// Keyword lists drive the deterministic classification stage. Matching is
// plain substring containment on the raw review text; Korean review text is
// short enough that this outperforms tokenization in practice.

// highRiskKeywords mark legal, hygiene and fraud territory. Any match
// forces risk=high and a 48h posting delay.
var highRiskKeywords = []string{
	"식중독", "배탈", "설사", "구토",
	"이물질", "머리카락", "벌레", "곰팡이", "위생",
	"신고", "고소", "소송", "경찰", "소비자원", "보건소",
	"환불", "사기", "허위", "보상",
}

// mediumRiskKeywords mark questions, requests and complaints that need a
// considered answer but not escalation.
var mediumRiskKeywords = []string{
	"문의", "질문", "요청", "궁금",
	"불만", "별로", "실망", "아쉬",
	"늦게", "늦었", "식었", "차갑",
	"누락", "빠졌", "안 왔", "잘못",
}

// positiveKeywords confirm a low-risk read on unrated or well-rated reviews.
var positiveKeywords = []string{
	"맛있", "맛잇", "최고", "굿", "존맛",
	"친절", "빠르", "빨리", "따뜻",
	"좋아", "좋았", "만족", "감사",
	"재주문", "또 시켜", "단골",
}

// negativeKeywords feed the sentiment tally only; risk comes from the
// lists above.
var negativeKeywords = []string{
	"맛없", "최악", "별로", "실망",
	"불친절", "늦", "식었", "비싸",
	"다시는", "안 시켜",
}

func matchAny(text string, keywords []string) (string, bool) {
	for _, k := range keywords {
		if contains(text, k) {
			return k, true
		}
	}
	return "", false
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if contains(text, k) {
			n++
		}
	}
	return n
}
