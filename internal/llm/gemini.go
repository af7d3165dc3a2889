// internal/llm/gemini.go
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

type modelConfig struct {
	Name string
	RPM  int
	RPD  int
}

// GeminiProvider calls the Gemini API with a fallback model list and a
// local per-model request budget so a busy batch degrades to the lighter
// model instead of burning the quota.
type GeminiProvider struct {
	client *genai.Client
	models []modelConfig

	dailyCount   map[string]int
	minuteCount  map[string]int
	lastResetDay time.Time
	lastResetMin time.Time
	mu           sync.Mutex
}

// NewGeminiProvider creates a provider for the given API key. The primary
// model is tried first; gemini-2.5-flash-lite is the built-in fallback.
func NewGeminiProvider(ctx context.Context, apiKey, primaryModel string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, err
	}

	models := []modelConfig{
		{Name: primaryModel, RPM: 10, RPD: 250},
	}
	if primaryModel != "gemini-2.5-flash-lite" {
		models = append(models, modelConfig{Name: "gemini-2.5-flash-lite", RPM: 15, RPD: 1000})
	}

	return &GeminiProvider{
		client:       client,
		models:       models,
		dailyCount:   make(map[string]int),
		minuteCount:  make(map[string]int),
		lastResetDay: time.Now(),
		lastResetMin: time.Now(),
	}, nil
}

var _ Provider = (*GeminiProvider)(nil)

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	prompt := req.UserPrompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.UserPrompt
	}

	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}

	var lastErr error
	for _, m := range p.models {
		if !p.canUseModel(m) {
			continue
		}

		result, err := p.client.Models.GenerateContent(ctx, m.Name, genai.Text(prompt), cfg)
		if err != nil {
			errStr := strings.ToLower(err.Error())
			if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") ||
				strings.Contains(errStr, "exhausted") || strings.Contains(errStr, "not found") {
				lastErr = err
				continue
			}
			return nil, err
		}

		if result != nil && len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
			p.recordUsage(m)
			resp := &Response{
				Text:  cleanFences(result.Candidates[0].Content.Parts[0].Text),
				Model: m.Name,
			}
			if result.UsageMetadata != nil {
				resp.TokensUsed = int(result.UsageMetadata.TotalTokenCount)
			}
			return resp, nil
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no model produced a candidate")
	}
	return nil, fmt.Errorf("all gemini models failed: %w", lastErr)
}

func (p *GeminiProvider) canUseModel(m modelConfig) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if now.YearDay() != p.lastResetDay.YearDay() {
		p.dailyCount = make(map[string]int)
		p.lastResetDay = now
	}
	if now.Sub(p.lastResetMin) >= time.Minute {
		p.minuteCount = make(map[string]int)
		p.lastResetMin = now
	}
	if p.dailyCount[m.Name] >= m.RPD {
		return false
	}
	if p.minuteCount[m.Name] >= m.RPM {
		return false
	}
	return true
}

func (p *GeminiProvider) recordUsage(m modelConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dailyCount[m.Name]++
	p.minuteCount[m.Name]++
}

// cleanFences strips markdown code fences the model sometimes wraps
// around plain-text answers.
func cleanFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
