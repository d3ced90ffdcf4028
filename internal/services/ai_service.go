package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"github.com/arjunmehta/medilens/internal/config"
	"github.com/arjunmehta/medilens/internal/domain"
)

const geminiModel = "gemini-1.5-flash"

// AIService talks to the vision/language inference providers. Responses
// are returned as raw text; tolerating their weak structure is the
// normalizer's job, not this client's.
type AIService struct {
	geminiClient *genai.Client
	openaiClient *openai.Client
	provider     string
}

func NewAIService(ctx context.Context, cfg *config.Config) (*AIService, error) {
	s := &AIService{provider: cfg.AIProvider}

	if cfg.GeminiAPIKey != "" {
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		s.geminiClient = client
	}
	if cfg.OpenAIAPIKey != "" {
		s.openaiClient = openai.NewClient(cfg.OpenAIAPIKey)
	}

	if s.provider == "gemini" && s.geminiClient == nil {
		return nil, fmt.Errorf("gemini provider selected but no API key configured")
	}
	if s.provider == "openai" && s.openaiClient == nil {
		return nil, fmt.Errorf("openai provider selected but no API key configured")
	}
	return s, nil
}

const medicationPrompt = `You are a licensed pharmacist assistant. Analyze the medication packaging or prescription in the image.

TASK:
1. Identify every medicine visible in the image
2. For each medicine, extract identity, dosage, warnings and any prescription details
3. Extract affordability information where visible

CRITICAL JSON FORMAT REQUIREMENTS:
- Your response MUST be a valid JSON array, one object per medicine
- Do not include any markdown formatting or explanatory text before or after the JSON
- Each object must have these exact fields (use "" or [] when not visible):
  {
    "medicine_name": "...",
    "active_ingredients": ["..."],
    "common_uses": "...",
    "dosage": "...",
    "warnings": ["..."],
    "recommended_time": "HH:MM or empty",
    "food_warnings": ["..."],
    "prescriber_name": "...",
    "facility_name": "...",
    "signature_verified": true,
    "license_number": "...",
    "patient_name": "...",
    "patient_age": "...",
    "patient_sex": "...",
    "affordability": {
      "generic_alternative": "...",
      "estimated_savings": "...",
      "senior_discount_eligible": true,
      "coverage_note": "...",
      "assistance_programs": ["..."]
    }
  }`

// AnalyzeMedicationImage sends the photographed label to the configured
// provider and returns the raw response text.
func (s *AIService) AnalyzeMedicationImage(ctx context.Context, imageData []byte) (string, error) {
	if s.provider == "openai" {
		return s.completeWithImageOpenAI(ctx, medicationPrompt, imageData)
	}
	return s.completeWithImageGemini(ctx, medicationPrompt, imageData)
}

// CheckInteractions asks for a severity-tagged judgment across the
// medicines summarized by the caller.
func (s *AIService) CheckInteractions(ctx context.Context, summary string) (string, error) {
	prompt := fmt.Sprintf(`You are a clinical pharmacology assistant. The user is taking these medicines together:

%s

Determine whether any harmful drug-drug interaction exists between them.

CRITICAL JSON FORMAT REQUIREMENTS:
- Respond with a single valid JSON object and nothing else:
  {
    "has_conflict": true,
    "severity": "high|medium|low|none",
    "description": "..."
  }
- If severity is "high", begin the description with "WARNING:" so the user cannot miss it
- If there is no known interaction, set has_conflict to false and severity to "none"`, summary)
	return s.completeText(ctx, prompt)
}

// TranslateBatch translates every entry's name/purpose/warnings triple in
// one call, preserving order and count.
func (s *AIService) TranslateBatch(ctx context.Context, entries []domain.TranslatedFields, targetLang string) ([]domain.TranslatedFields, error) {
	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	prompt := fmt.Sprintf(`Translate the "name", "purpose" and "warnings" values in the JSON array below into the language with code %q.

REQUIREMENTS:
- Keep the array order and length exactly as given
- Keep the JSON keys unchanged
- Respond with the translated JSON array only, no commentary

%s`, targetLang, string(payload))

	raw, err := s.completeText(ctx, prompt)
	if err != nil {
		return nil, err
	}

	body := extractPayload(stripCodeFences(raw))
	if body == "" {
		return nil, fmt.Errorf("no JSON payload in translation response")
	}
	var translated []domain.TranslatedFields
	if err := json.Unmarshal([]byte(body), &translated); err != nil {
		return nil, fmt.Errorf("failed to parse translation response: %w", err)
	}
	if len(translated) != len(entries) {
		return nil, fmt.Errorf("translation count mismatch: sent %d, got %d", len(entries), len(translated))
	}
	return translated, nil
}

// TranslateText translates exactly one text snippet, used by the speech
// fallback path.
func (s *AIService) TranslateText(ctx context.Context, text, targetLang string) (string, error) {
	prompt := fmt.Sprintf("Translate the following text into the language with code %q. Respond with the translation only, no commentary:\n\n%s", targetLang, text)
	out, err := s.completeText(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (s *AIService) completeText(ctx context.Context, prompt string) (string, error) {
	if s.provider == "openai" {
		return s.completeTextOpenAI(ctx, prompt)
	}
	return s.completeTextGemini(ctx, prompt)
}

func (s *AIService) completeTextGemini(ctx context.Context, prompt string) (string, error) {
	model := s.geminiClient.GenerativeModel(geminiModel)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return geminiResponseText(resp)
}

func (s *AIService) completeWithImageGemini(ctx context.Context, prompt string, imageData []byte) (string, error) {
	model := s.geminiClient.GenerativeModel(geminiModel)
	img := genai.ImageData("image/jpeg", imageData)
	resp, err := model.GenerateContent(ctx, img, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return geminiResponseText(resp)
}

func geminiResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text parts in Gemini response")
	}
	return b.String(), nil
}

func (s *AIService) completeTextOpenAI(ctx context.Context, prompt string) (string, error) {
	resp, err := s.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4o,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *AIService) completeWithImageOpenAI(ctx context.Context, prompt string, imageData []byte) (string, error) {
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageData)
	resp, err := s.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4o,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: imageURL,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}
