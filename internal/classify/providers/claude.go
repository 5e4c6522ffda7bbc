package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"applytrack-utils/internal/classify/processors"
	"applytrack-utils/internal/config"
	"applytrack-utils/internal/logging"
	"applytrack-utils/pkg/models"
)

// ClaudeProvider implements the Scorer interface using Anthropic's Claude
type ClaudeProvider struct {
	client  anthropic.Client
	config  *config.Config
	cleaner *processors.DescriptionCleaner
	logger  logging.Logger
}

// NewClaudeProvider creates a new Claude provider instance
func NewClaudeProvider(cfg *config.Config) *ClaudeProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.Scorer.APIKey),
	)

	return &ClaudeProvider{
		client:  client,
		config:  cfg,
		cleaner: processors.NewDescriptionCleaner(),
		logger:  logging.GetGlobalLogger(),
	}
}

// Score produces a spam verdict or compatibility analysis for a single job
// using Claude.
func (cp *ClaudeProvider) Score(ctx context.Context, input *models.ScoreInput) (*models.ClassificationResult, error) {
	startTime := time.Now()

	cp.logger.Debug("Starting classification with Claude", map[string]interface{}{
		"kind":     string(input.Kind),
		"job_id":   input.Job.ID,
		"provider": "claude",
	})

	prompt, err := cp.buildPrompt(input)
	if err != nil {
		return nil, err
	}

	response, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(cp.config.Scorer.Model),
		MaxTokens:   int64(cp.config.Scorer.MaxTokens),
		Temperature: anthropic.Float(float64(cp.config.Scorer.Temperature)),
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to call Claude API: %w", err)
	}

	result, err := cp.parseResponse(response, input.Kind)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Claude response: %w", err)
	}

	cp.logger.Debug("Classification completed", map[string]interface{}{
		"kind":            string(input.Kind),
		"job_id":          input.Job.ID,
		"processing_time": time.Since(startTime).String(),
		"provider":        "claude",
	})

	return result, nil
}

// buildPrompt creates the scoring prompt for the requested artifact kind.
func (cp *ClaudeProvider) buildPrompt(input *models.ScoreInput) (string, error) {
	description := cp.cleaner.CleanText(input.Job.Description)
	// Rough estimation: 3 chars per token
	description = cp.cleaner.Truncate(description, cp.config.Scorer.MaxTokens*3)

	switch input.Kind {
	case models.KindSpamVerdict:
		return cp.buildSpamPrompt(input.Job, description), nil
	case models.KindCompatibility:
		if input.Profile == nil {
			return "", fmt.Errorf("compatibility scoring requires a user profile")
		}
		return cp.buildCompatibilityPrompt(input.Job, input.Profile, description), nil
	default:
		return "", fmt.Errorf("unsupported artifact kind: %s", input.Kind)
	}
}

func (cp *ClaudeProvider) buildSpamPrompt(job *models.JobRecord, description string) string {
	return fmt.Sprintf(`You are a job posting fraud analyst. Decide whether the posting below is spam (MLM scheme, upfront-fee scam, vague bait role, recruitment chain) or a legitimate opening, and return ONLY a valid JSON object with exactly these fields:

{
  "is_spam": boolean,
  "probability": number between 0 and 1,
  "category": "none" | "mlm_scheme" | "fee_upfront" | "vague_role" | "recruitment_chain",
  "signals": ["array of strings - concrete phrases or traits that drove the verdict"],
  "reason": "string - one-sentence explanation"
}

IMPORTANT RULES:
1. Return ONLY valid JSON, no additional text or explanation
2. Use category "none" when the posting is legitimate
3. Keep signals short and quote from the posting where possible

JOB POSTING:
Title: %s
Company: %s
Location: %s
Description: %s`, job.Title, job.Company, job.Location, description)
}

func (cp *ClaudeProvider) buildCompatibilityPrompt(job *models.JobRecord, profile *models.UserProfile, description string) string {
	return fmt.Sprintf(`You are a career-match analyst. Compare the candidate profile against the job posting and return ONLY a valid JSON object with exactly these fields:

{
  "score": number between 0 and 100,
  "matched_skills": ["array of strings - candidate skills the posting asks for"],
  "missing_skills": ["array of strings - required skills the candidate lacks"],
  "recommendation": "strong_match" | "possible_match" | "weak_match",
  "summary": "string - 2 sentences max"
}

IMPORTANT RULES:
1. Return ONLY valid JSON, no additional text or explanation
2. Base matched and missing skills strictly on the posting text

CANDIDATE PROFILE:
Headline: %s
Skills: %s
Years of experience: %d
Summary: %s

JOB POSTING:
Title: %s
Company: %s
Location: %s
Description: %s`,
		profile.Headline, strings.Join(profile.Skills, ", "), profile.ExperienceYears, profile.Summary,
		job.Title, job.Company, job.Location, description)
}

// parseResponse parses the Claude API response into the typed result for the
// requested kind.
func (cp *ClaudeProvider) parseResponse(response *anthropic.Message, kind models.ArtifactKind) (*models.ClassificationResult, error) {
	if len(response.Content) == 0 {
		return nil, fmt.Errorf("empty response from Claude")
	}

	var responseText string
	for _, content := range response.Content {
		textContent := content.AsText()
		responseText = textContent.Text
		break
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text content in Claude response")
	}

	// Clean the response - remove any markdown code blocks if present
	responseText = strings.TrimSpace(responseText)
	if strings.HasPrefix(responseText, "```json") {
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)
	} else if strings.HasPrefix(responseText, "```") {
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)
	}

	result := &models.ClassificationResult{
		Kind:       kind,
		Provenance: models.ProvenanceComputed,
		CachedAt:   time.Now(),
	}

	switch kind {
	case models.KindSpamVerdict:
		var verdict models.SpamVerdict
		if err := json.Unmarshal([]byte(responseText), &verdict); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response from Claude: %w, response: %s", err, responseText)
		}
		if verdict.Category == "" {
			verdict.Category = models.SpamCategoryNone
		}
		result.Spam = &verdict
	case models.KindCompatibility:
		var compat models.CompatibilityResult
		if err := json.Unmarshal([]byte(responseText), &compat); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response from Claude: %w, response: %s", err, responseText)
		}
		if compat.Recommendation == "" {
			compat.Recommendation = "weak_match"
		}
		result.Compatibility = &compat
	default:
		return nil, fmt.Errorf("unsupported artifact kind: %s", kind)
	}

	return result, nil
}

// IsHealthy checks if the Claude provider is healthy and available
func (cp *ClaudeProvider) IsHealthy(ctx context.Context) error {
	if cp.config.Scorer.APIKey == "" {
		return fmt.Errorf("Claude API key not configured - set SCORER_API_KEY environment variable")
	}

	_, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(cp.config.Scorer.Model),
		MaxTokens: 500,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: "Hello"},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})

	if err != nil {
		return fmt.Errorf("Claude API health check failed: %w", err)
	}

	return nil
}

// GetProviderName returns the name of the scorer provider
func (cp *ClaudeProvider) GetProviderName() string {
	return "claude"
}
