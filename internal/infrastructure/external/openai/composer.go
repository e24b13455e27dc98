package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
)

const rewriteSystemPrompt = "You write short, friendly status emails from an academic project team to a student. " +
	"Rewrite the draft you are given in a warm, professional tone. Keep every fact, amount and name unchanged. " +
	"Reply with the email body only, no subject line and no signature placeholder."

// ComposerConfig configures the OpenAI rewrite step
type ComposerConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Composer implements port.MessageComposer. Templates always produce the message;
// when an API key is configured the body is rewritten by a chat completion and
// the template text is kept whenever that call fails.
type Composer struct {
	client      *openai.Client
	templates   *TemplateSet
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewComposer creates a composer. An empty API key disables the rewrite step.
func NewComposer(cfg ComposerConfig, templates *TemplateSet, logger *zap.Logger) *Composer {
	c := &Composer{
		templates:   templates,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
	if c.model == "" {
		c.model = openai.GPT4oMini
	}

	if cfg.APIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		c.client = openai.NewClientWithConfig(clientCfg)
	}

	return c
}

// Compose renders the template for the assignment's current snapshot
func (c *Composer) Compose(ctx context.Context, a *entity.Assignment, template string) (*entity.NotificationMessage, error) {
	subject, body, err := c.templates.Render(template, a)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", template, err)
	}

	msg := &entity.NotificationMessage{
		AssignmentID: a.ID,
		Recipient:    a.StudentRef,
		Template:     template,
		Subject:      strings.TrimSpace(subject),
		Body:         strings.TrimSpace(body),
	}

	if c.client == nil {
		return msg, nil
	}

	rewritten, err := c.rewrite(ctx, msg)
	if err != nil {
		c.logger.Warn("Falling back to template text",
			zap.String("assignment_id", a.ID),
			zap.String("template", template),
			zap.Error(err))
		return msg, nil
	}
	msg.Body = rewritten

	return msg, nil
}

func (c *Composer) rewrite(ctx context.Context, msg *entity.NotificationMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: rewriteSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Subject: %s\n\n%s", msg.Subject, msg.Body),
			},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty response from OpenAI")
	}

	c.logger.Debug("Notification body rewritten",
		zap.String("assignment_id", msg.AssignmentID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return content, nil
}

// Verify interface compliance
var _ port.MessageComposer = (*Composer)(nil)
