// internal/composer/variation.go
package composer

import (
	"math/rand"
	"sync"
)

// Variation picks among equivalent canned phrasings so template
// fallbacks do not read identically across a batch. Seedable for
// deterministic tests.
type Variation struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewVariation(seed int64) *Variation {
	return &Variation{rng: rand.New(rand.NewSource(seed))}
}

func (v *Variation) Pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return options[v.rng.Intn(len(options))]
}

var fallbackPositiveBodies = []string{
	"맛있게 드셨다니 정말 기쁩니다. 늘 같은 맛을 드리도록 정성을 다하겠습니다.",
	"좋게 봐주셔서 감사합니다. 다음 주문에서도 만족하실 수 있도록 노력하겠습니다.",
	"칭찬해 주신 덕분에 큰 힘이 됩니다. 앞으로도 변함없는 맛으로 보답하겠습니다.",
}

var fallbackNegativeBodies = []string{
	"불편을 드려 진심으로 죄송합니다. 말씀해 주신 부분은 바로 확인하여 개선하겠습니다.",
	"기대에 미치지 못해 죄송한 마음입니다. 같은 일이 반복되지 않도록 꼼꼼히 살피겠습니다.",
}

var fallbackNeutralBodies = []string{
	"주문해 주셔서 감사합니다. 말씀 주신 내용은 꼼꼼히 참고하여 더 나은 모습으로 보답하겠습니다.",
	"이용해 주셔서 감사합니다. 더 만족하실 수 있도록 계속 노력하겠습니다.",
}
