// Package scenarioai converts natural-language stress scenario descriptions
// into structured shock parameters using an LLM provider.
package scenarioai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stresslab/internal/modules/market"
)

// Providers supported by the client.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const systemPromptTemplate = `You are a financial risk expert specializing in stress testing and scenario analysis.
Your task is to convert a user's natural language description of a market stress scenario into a structured JSON format.

Available assets in the system: %s

Return ONLY a JSON object with the following structure:
{
    "name": "Short descriptive name",
    "description": "More detailed explanation of the scenario and its impacts",
    "category": "One of: market_crash, rate_shock, volatility_spike, geopolitical_event, commodity_shock, currency_crisis, other",
    "parameters": {
        "return_shocks": { "TICKER": shock_value, ... },
        "volatility_multipliers": { "TICKER": multiplier, ... },
        "correlation_multiplier": float_between_0.5_and_2.0
    },
    "tags": ["tag1", "tag2", ...]
}

Guidelines:
- return_shocks: -0.20 means a 20%% drop, 0.05 means a 5%% gain.
- volatility_multipliers: 1.5 means volatility increases by 50%%.
- correlation_multiplier: > 1.0 means assets become more correlated (typical in stress).
- Focus on the available assets provided. If an asset is not mentioned but likely affected (e.g., Tech stocks in a tech crash), include them.`

// GeneratedScenario is the parsed model response.
type GeneratedScenario struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Parameters  market.Shock `json:"-"`
	Tags        []string     `json:"tags"`
}

// wire shapes: the model speaks plural keys, market.Shock singular ones.
type generatedPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Parameters  struct {
		ReturnShocks          map[string]float64 `json:"return_shocks"`
		VolatilityMultipliers map[string]float64 `json:"volatility_multipliers"`
		CorrelationMultiplier *float64           `json:"correlation_multiplier"`
	} `json:"parameters"`
}

// Config configures the client.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// Client calls the configured LLM provider. A client without an API key is
// valid but disabled: Enabled() reports false and Generate fails fast.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// New creates a client. Defaults: provider openai, model gpt-4o (openai) or
// claude-3-5-sonnet-20240620 (anthropic), public API base URLs.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	cfg.Provider = strings.ToLower(cfg.Provider)

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Model == "" {
			cfg.Model = "gpt-4o"
		}
	case ProviderAnthropic:
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.anthropic.com"
		}
		if cfg.Model == "" {
			cfg.Model = "claude-3-5-sonnet-20240620"
		}
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 60 * time.Second},
		log:  log.With().Str("component", "scenarioai").Str("provider", cfg.Provider).Logger(),
	}, nil
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.cfg.APIKey != "" }

// Generate asks the model to turn a scenario description into structured
// shock parameters over the available assets.
func (c *Client) Generate(ctx context.Context, prompt string, availableAssets []string) (*GeneratedScenario, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ai scenario generation disabled: no API key configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("empty scenario prompt")
	}

	system := fmt.Sprintf(systemPromptTemplate, strings.Join(availableAssets, ", "))

	var content string
	var err error
	switch c.cfg.Provider {
	case ProviderAnthropic:
		content, err = c.callAnthropic(ctx, system, prompt)
	default:
		content, err = c.callOpenAI(ctx, system, prompt)
	}
	if err != nil {
		return nil, err
	}

	return parseScenario(content)
}

func (c *Client) callOpenAI(ctx context.Context, system, prompt string) (string, error) {
	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	if err := c.post(ctx, c.cfg.BaseURL+"/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) callAnthropic(ctx context.Context, system, prompt string) (string, error) {
	body := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": 2000,
		"system":     system,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	}
	if err := c.post(ctx, c.cfg.BaseURL+"/v1/messages", headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("model returned no content")
	}
	return resp.Content[0].Text, nil
}

func (c *Client) post(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ai request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read ai response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ai provider returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode ai response: %w", err)
	}
	return nil
}

// parseScenario decodes the model's JSON. Models occasionally wrap the JSON
// in prose, so on a direct-decode failure the outermost brace window is
// extracted and retried.
func parseScenario(content string) (*GeneratedScenario, error) {
	var payload generatedPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("model response is not JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
			return nil, fmt.Errorf("failed to parse model response: %w", err)
		}
	}

	if payload.Name == "" {
		return nil, fmt.Errorf("model response missing scenario name")
	}
	if len(payload.Parameters.ReturnShocks) == 0 && len(payload.Parameters.VolatilityMultipliers) == 0 {
		return nil, fmt.Errorf("model response contains no shocks")
	}

	return &GeneratedScenario{
		Name:        payload.Name,
		Description: payload.Description,
		Category:    payload.Category,
		Tags:        payload.Tags,
		Parameters: market.Shock{
			ReturnShock:           payload.Parameters.ReturnShocks,
			VolatilityMultiplier:  payload.Parameters.VolatilityMultipliers,
			CorrelationMultiplier: payload.Parameters.CorrelationMultiplier,
		},
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
