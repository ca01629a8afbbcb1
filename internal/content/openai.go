package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/logging"
	"github.com/zdub15/agent-website-generator/internal/profile"
	"github.com/zdub15/agent-website-generator/internal/site"
)

// Defaults for the chat-completions client.
const (
	DefaultEndpoint    = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultTimeout     = 60 * time.Second
)

const systemPrompt = "You are an expert insurance marketing copywriter. Always respond with valid JSON only."

// ErrNoAPIKey is returned by New when no API key is configured.
var ErrNoAPIKey = errors.New("llm api key is required")

// Config configures the OpenAI-compatible generator.
type Config struct {
	APIKey      string
	Endpoint    string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Generator writes site copy through a chat-completions endpoint.
type Generator struct {
	client *resty.Client
	cfg    Config
	logger *zap.Logger
}

// New builds a Generator. Zero values in cfg take the package defaults.
func New(cfg Config, logger *zap.Logger) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.Endpoint, "/"))
	client.SetAuthToken(cfg.APIKey)
	client.SetHeader("content-type", "application/json")
	client.SetTimeout(cfg.Timeout)

	return &Generator{
		client: client,
		cfg:    cfg,
		logger: logging.OrNop(logger).Named("content"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
	Temperature    float64        `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate asks the model for site copy. Sections the model leaves out are
// taken from the default bundle.
func (g *Generator) Generate(ctx context.Context, p profile.AgentProfile) (site.GeneratedContent, error) {
	req := chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: Prompt(p)},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
		Temperature:    g.cfg.Temperature,
	}

	var (
		out    chatResponse
		failed apiError
	)
	start := time.Now()
	res, err := g.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&failed).
		Post("/chat/completions")
	if err != nil {
		return site.GeneratedContent{}, fmt.Errorf("call chat completions: %w", err)
	}
	if res.IsError() {
		msg := failed.Error.Message
		if msg == "" {
			msg = res.Status()
		}
		return site.GeneratedContent{}, fmt.Errorf("chat completions returned %d: %s", res.StatusCode(), msg)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return site.GeneratedContent{}, errors.New("chat completions returned no content")
	}

	var generated site.GeneratedContent
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &generated); err != nil {
		return site.GeneratedContent{}, fmt.Errorf("decode generated content: %w", err)
	}
	g.logger.Debug("content generated",
		zap.String("model", g.cfg.Model),
		zap.String("agent", p.Name),
		zap.Duration("duration", time.Since(start)))
	return fillMissing(generated, Default(p)), nil
}

func fillMissing(got, defaults site.GeneratedContent) site.GeneratedContent {
	if strings.TrimSpace(got.Headline) == "" {
		got.Headline = defaults.Headline
	}
	if strings.TrimSpace(got.Subheadline) == "" {
		got.Subheadline = defaults.Subheadline
	}
	if strings.TrimSpace(got.EnhancedBio) == "" {
		got.EnhancedBio = defaults.EnhancedBio
	}
	if len(got.Services) == 0 {
		got.Services = defaults.Services
	}
	if len(got.Testimonials) == 0 {
		got.Testimonials = defaults.Testimonials
	}
	if len(got.ProcessSteps) == 0 {
		got.ProcessSteps = defaults.ProcessSteps
	}
	if got.Stats == (site.Stats{}) {
		got.Stats = defaults.Stats
	}
	return got
}

// Prompt is the user message describing the agent and the JSON shape wanted.
func Prompt(p profile.AgentProfile) string {
	company := p.CompanyName
	if company == "" {
		company = "Independent Agent"
	}
	var b strings.Builder
	b.WriteString("You are an expert insurance marketing copywriter. ")
	b.WriteString("Generate professional, engaging website content for a health insurance agent.\n\n")
	b.WriteString("Agent Information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", p.Name)
	fmt.Fprintf(&b, "- Products: %s\n", strings.Join(p.Products, ", "))
	fmt.Fprintf(&b, "- Bio: %s\n", p.Bio)
	fmt.Fprintf(&b, "- Company: %s\n\n", company)
	b.WriteString("Generate a complete JSON object with the following structure. ")
	b.WriteString("Make the content warm, professional, and trustworthy. Emphasize personalized service.\n\n")
	b.WriteString("Required JSON structure:\n")
	b.WriteString(promptSchema)
	b.WriteString("\n\nReturn ONLY valid JSON, no markdown or explanation.")
	return b.String()
}

const promptSchema = `{
  "headline": "A compelling 5-8 word headline for the hero section",
  "subheadline": "A 15-25 word supporting statement",
  "enhancedBio": "A 100-150 word professional bio that positions the agent as a trusted expert",
  "services": [
    {"id": "private-ppo", "title": "Private PPO Plans", "description": "40-60 word description", "benefits": ["benefit 1", "benefit 2", "benefit 3"]},
    {"id": "aca", "title": "ACA/Marketplace Plans", "description": "40-60 word description", "benefits": ["benefit 1", "benefit 2", "benefit 3"]},
    {"id": "group", "title": "Group Insurance", "description": "40-60 word description", "benefits": ["benefit 1", "benefit 2", "benefit 3"]},
    {"id": "supplemental", "title": "Supplemental Benefits", "description": "40-60 word description", "benefits": ["benefit 1", "benefit 2", "benefit 3"]},
    {"id": "dental", "title": "Dental Coverage", "description": "40-60 word description", "benefits": ["benefit 1", "benefit 2", "benefit 3"]},
    {"id": "vision", "title": "Vision Plans", "description": "40-60 word description", "benefits": ["benefit 1", "benefit 2", "benefit 3"]}
  ],
  "testimonials": [
    {"quote": "A realistic 30-50 word testimonial", "author": "First name and last initial", "location": "City, State", "rating": 5}
  ] (generate 5 testimonials),
  "processSteps": [
    {"step": 1, "title": "Free Consultation", "description": "20-30 word description"},
    {"step": 2, "title": "Personalized Options", "description": "20-30 word description"},
    {"step": 3, "title": "Easy Enrollment", "description": "20-30 word description"}
  ],
  "stats": {"familiesHelped": "150+", "satisfactionRate": "98%", "coverageIssued": "$1M+"}
}`
