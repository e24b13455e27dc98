package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/pkg/utils"
)

const (
	receiveIDTypeEmail  = "email"
	receiveIDTypeOpenID = "open_id"
	msgTypePost         = "post"
)

// MessageCreator is the slice of the im.v1 message resource the gateway needs
type MessageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// EmailGateway delivers notification messages as Lark "post" messages addressed by email
type EmailGateway struct {
	messages    MessageCreator
	emailDomain string
	locale      string
	logger      *zap.Logger
}

// GatewayConfig configures recipient resolution
type GatewayConfig struct {
	// EmailDomain turns a bare student reference into <ref>@<domain>
	EmailDomain string
	// Locale of the post content, defaults to en_us
	Locale string
}

// NewEmailGateway creates a gateway on top of the SDK client
func NewEmailGateway(sdk *SDKClient, cfg GatewayConfig, logger *zap.Logger) *EmailGateway {
	return NewEmailGatewayWithCreator(sdk.Messages(), cfg, logger)
}

// NewEmailGatewayWithCreator creates a gateway with an explicit message creator
func NewEmailGatewayWithCreator(messages MessageCreator, cfg GatewayConfig, logger *zap.Logger) *EmailGateway {
	locale := cfg.Locale
	if locale == "" {
		locale = "en_us"
	}
	return &EmailGateway{
		messages:    messages,
		emailDomain: strings.TrimPrefix(cfg.EmailDomain, "@"),
		locale:      locale,
		logger:      logger,
	}
}

// Send implements port.NotificationGateway
func (g *EmailGateway) Send(ctx context.Context, msg *entity.NotificationMessage) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}

	idType, receiveID, err := g.resolveRecipient(msg.Recipient)
	if err != nil {
		return err
	}

	content, err := g.postContent(msg.Subject, msg.Body)
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(idType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgTypePost).
			Content(content).
			Build()).
		Build()

	resp, err := g.messages.Create(ctx, req)
	if err != nil {
		g.logger.Error("Failed to send message",
			zap.String("assignment_id", msg.AssignmentID),
			zap.String("template", msg.Template),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		g.logger.Error("API returned failure",
			zap.String("assignment_id", msg.AssignmentID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	g.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("assignment_id", msg.AssignmentID),
		zap.String("template", msg.Template))

	return nil
}

// resolveRecipient maps a student reference to a Lark receive id
func (g *EmailGateway) resolveRecipient(ref string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return "", "", fmt.Errorf("recipient cannot be empty")
	case strings.Contains(ref, "@"):
		if err := utils.ValidateEmail(ref); err != nil {
			return "", "", err
		}
		return receiveIDTypeEmail, ref, nil
	case strings.HasPrefix(ref, "ou_"):
		return receiveIDTypeOpenID, ref, nil
	case g.emailDomain != "":
		return receiveIDTypeEmail, ref + "@" + g.emailDomain, nil
	}
	return "", "", fmt.Errorf("cannot resolve recipient %q: no email domain configured", ref)
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// postContent renders one paragraph per body line
func (g *EmailGateway) postContent(subject, body string) (string, error) {
	var paragraphs [][]postElement
	for _, line := range strings.Split(body, "\n") {
		paragraphs = append(paragraphs, []postElement{{Tag: "text", Text: line}})
	}

	data, err := json.Marshal(map[string]postBody{
		g.locale: {Title: subject, Content: paragraphs},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal post content: %w", err)
	}
	return string(data), nil
}

// Verify interface compliance
var _ port.NotificationGateway = (*EmailGateway)(nil)
