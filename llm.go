package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// Classification is the raw result of one LLM classification call before any
// blending or gating. Failed marks an unusable result (call error, unparseable
// output, label outside the candidate set); the gate must not blend it.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Failed     bool    `json:"-"`
}

type ExtractedTask struct {
	Text             string  `json:"text"`
	Action           string  `json:"action"`
	Priority         string  `json:"priority"`
	Confidence       float64 `json:"confidence"`
	EstimatedMinutes int     `json:"estimated_duration_minutes"`
}

type ExtractedEntity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"` // "person" or "project"
	Confidence float64 `json:"confidence"`
}

// llmContext bounds every model call. The LLM is the only latency-significant
// operation in the system; on timeout the caller maps the error to confidence
// 0, which routes to a clarification question instead of blocking or guessing.
func llmContext(cfg Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(cfg.LLMTimeoutSeconds)*time.Second)
}

func ollamaModelForTask(cfg Config, taskType string) string {
	switch taskType {
	case "routing":
		return cfg.OllamaRoutingModel
	case "entity_recognition":
		return cfg.OllamaEntityModel
	case "task_extraction":
		return cfg.OllamaTaskModel
	}
	return cfg.OllamaRoutingModel
}

// generate dispatches a prompt to the configured provider and returns the raw
// response text. The ollama path retries once on the fallback model.
func generate(ctx context.Context, cfg Config, taskType, systemPrompt, userPrompt string) (string, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		model := cfg.AnthropicModel
		if model == "" {
			model = defaultAnthropicModel
		}
		log.Printf("llm generate provider=anthropic model=%s task=%s", model, taskType)
		return callAnthropic(ctx, cfg.AnthropicAPIKey, model, systemPrompt, userPrompt)
	default:
		model := ollamaModelForTask(cfg, taskType)
		log.Printf("llm generate provider=ollama model=%s task=%s", model, taskType)
		text, err := callOllama(ctx, cfg.OllamaHost, model, systemPrompt, userPrompt)
		if err != nil && cfg.OllamaFallbackModel != "" && model != cfg.OllamaFallbackModel {
			log.Printf("llm model %s failed (%v), falling back to %s", model, err, cfg.OllamaFallbackModel)
			return callOllama(ctx, cfg.OllamaHost, cfg.OllamaFallbackModel, systemPrompt, userPrompt)
		}
		return text, err
	}
}

// --- Routing ---

func buildRoutingPrompts(title, content string, keywords []string, domains []Domain) (string, string) {
	var domainLines strings.Builder
	for _, d := range domains {
		domainLines.WriteString(fmt.Sprintf("- %s: %s\n", d.Path, d.Name))
	}

	systemPrompt := fmt.Sprintf(`You assign a note to exactly one domain from:
%s
Set confidence between 0 and 1 for how sure you are.

Respond with JSON only (no markdown):
{"label": "domain path", "confidence": 0.85, "reasoning": "brief explanation"}`, domainLines.String())

	if len(content) > 1500 {
		content = content[:1500]
	}
	userPrompt := fmt.Sprintf("Title: %s\nKeywords: %s\nContent:\n%s",
		title, strings.Join(keywords, ", "), content)
	return systemPrompt, userPrompt
}

// ClassifyNoteDomain asks the model to route a note to one of the given
// domains. A label outside the candidate set is treated as unusable output
// and flagged failed, which forces the clarification path.
func ClassifyNoteDomain(cfg Config, title, content string, keywords []string, domains []Domain) (Classification, error) {
	if len(domains) == 0 {
		return Classification{}, fmt.Errorf("no active domains to route into")
	}

	ctx, cancel := llmContext(cfg)
	defer cancel()

	systemPrompt, userPrompt := buildRoutingPrompts(title, content, keywords, domains)
	responseText, err := generate(ctx, cfg, "routing", systemPrompt, userPrompt)
	if err != nil {
		return Classification{}, err
	}

	parsed, err := parseClassification(responseText)
	if err != nil {
		return Classification{}, err
	}

	valid := false
	for _, d := range domains {
		if d.Path == parsed.Label {
			valid = true
			break
		}
	}
	if !valid {
		log.Printf("llm routing returned unknown domain %q", parsed.Label)
		return Classification{Label: parsed.Label, Failed: true, Reasoning: "model chose unknown domain"}, nil
	}

	parsed.Confidence = clamp(parsed.Confidence, 0, 1)
	return parsed, nil
}

func parseClassification(responseText string) (Classification, error) {
	var c Classification
	cleaned := stripJSONFences(responseText)
	if err := json.Unmarshal([]byte(cleaned), &c); err != nil {
		return c, fmt.Errorf("parsing classification response: %w (response: %s)", err, truncateForLog(cleaned))
	}
	c.Label = strings.TrimSpace(c.Label)
	return c, nil
}

// --- Task extraction ---

const taskExtractionSystemPrompt = `Extract all action items and tasks from the note.

Look for:
- explicit tasks with checkboxes [ ]
- "need to", "should", "must", "have to"
- action verbs (schedule, review, create, fix, etc)
- questions that require action

For each task provide the original text, a verb-first action rewrite, a
priority (high/medium/low) with your confidence in that priority between 0 and
1, and an estimated duration in minutes.

Respond with JSON only (no markdown):
{"tasks": [{"text": "original text", "action": "Schedule meeting with John", "priority": "high", "confidence": 0.8, "estimated_duration_minutes": 30}]}`

func ExtractTasks(cfg Config, content string) ([]ExtractedTask, error) {
	ctx, cancel := llmContext(cfg)
	defer cancel()

	responseText, err := generate(ctx, cfg, "task_extraction", taskExtractionSystemPrompt, content)
	if err != nil {
		return nil, err
	}
	return parseExtractedTasks(responseText)
}

func parseExtractedTasks(responseText string) ([]ExtractedTask, error) {
	var parsed struct {
		Tasks []ExtractedTask `json:"tasks"`
	}
	cleaned := stripJSONFences(responseText)
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("parsing task extraction response: %w (response: %s)", err, truncateForLog(cleaned))
	}

	var tasks []ExtractedTask
	for _, task := range parsed.Tasks {
		task.Action = strings.TrimSpace(task.Action)
		if task.Action == "" {
			continue
		}
		task.Priority = normalizePriority(task.Priority)
		task.Confidence = clamp(task.Confidence, 0, 1)
		if task.EstimatedMinutes <= 0 {
			task.EstimatedMinutes = 30
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high":
		return "high"
	case "low":
		return "low"
	default:
		return "medium"
	}
}

// --- Entity recognition ---

const entitySystemPrompt = `List the people and projects mentioned in the note.

For each entity provide its name, a type of "person" or "project", and your
confidence between 0 and 1 that it really is an entity of that type.

Respond with JSON only (no markdown):
{"entities": [{"name": "Alice", "type": "person", "confidence": 0.9}]}`

func ExtractEntities(cfg Config, content string) ([]ExtractedEntity, error) {
	ctx, cancel := llmContext(cfg)
	defer cancel()

	responseText, err := generate(ctx, cfg, "entity_recognition", entitySystemPrompt, content)
	if err != nil {
		return nil, err
	}
	return parseExtractedEntities(responseText)
}

func parseExtractedEntities(responseText string) ([]ExtractedEntity, error) {
	var parsed struct {
		Entities []ExtractedEntity `json:"entities"`
	}
	cleaned := stripJSONFences(responseText)
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("parsing entity response: %w (response: %s)", err, truncateForLog(cleaned))
	}

	var entities []ExtractedEntity
	for _, entity := range parsed.Entities {
		entity.Name = strings.TrimSpace(entity.Name)
		if entity.Name == "" {
			continue
		}
		if entity.Type != "person" && entity.Type != "project" {
			entity.Type = "person"
		}
		entity.Confidence = clamp(entity.Confidence, 0, 1)
		entities = append(entities, entity)
	}
	return entities, nil
}

// --- Providers ---

func callAnthropic(ctx context.Context, apiKey, model, systemPrompt, userPrompt string) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d",
				len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

func callOllama(ctx context.Context, host, model, systemPrompt, userPrompt string) (string, error) {
	reqBody := ollamaRequest{
		Model: model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream:  false,
		Format:  "json",
		Options: ollamaOptions{Temperature: 0.3},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", strings.TrimRight(host, "/")+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("llm ollama error: %v", err)
		return "", fmt.Errorf("Ollama API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return "", fmt.Errorf("parsing Ollama response: %w", err)
	}
	if ollamaResp.Error != "" {
		log.Printf("llm ollama api error: %s", ollamaResp.Error)
		return "", fmt.Errorf("Ollama API error: %s", ollamaResp.Error)
	}
	if ollamaResp.Message.Content == "" {
		return "", fmt.Errorf("empty Ollama response")
	}

	log.Printf("llm ollama response size=%d model=%s", len(ollamaResp.Message.Content), model)
	return ollamaResp.Message.Content, nil
}

// --- Helpers ---

func stripJSONFences(responseText string) string {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	return strings.TrimSpace(responseText)
}

func truncateForLog(s string) string {
	if len(s) > 512 {
		return s[:512] + fmt.Sprintf("... [truncated, total_length=%d]", len(s))
	}
	return s
}
