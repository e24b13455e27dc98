package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
)

type mockCreator struct {
	createFunc func(ctx context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error)
	requests   []*larkim.CreateMessageReq
}

func (m *mockCreator) Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	m.requests = append(m.requests, req)
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return &larkim.CreateMessageResp{
		Data: &larkim.CreateMessageRespData{MessageId: larkcore.StringPtr("om_1")},
	}, nil
}

func testMessage(recipient string) *entity.NotificationMessage {
	return &entity.NotificationMessage{
		AssignmentID: "asg-1",
		Recipient:    recipient,
		Template:     entity.TemplateWorkStarted,
		Subject:      "Work has started",
		Body:         "Hi,\nWork on your project has started.",
	}
}

func TestEmailGateway_Send(t *testing.T) {
	creator := &mockCreator{}
	gw := NewEmailGatewayWithCreator(creator, GatewayConfig{}, zap.NewNop())

	require.NoError(t, gw.Send(context.Background(), testMessage("stu@example.com")))
	require.Len(t, creator.requests, 1)

	body := creator.requests[0].Body
	require.NotNil(t, body)
	assert.Equal(t, "stu@example.com", *body.ReceiveId)
	assert.Equal(t, "post", *body.MsgType)

	var content map[string]postBody
	require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
	post, ok := content["en_us"]
	require.True(t, ok)
	assert.Equal(t, "Work has started", post.Title)
	require.Len(t, post.Content, 2)
	assert.Equal(t, "Work on your project has started.", post.Content[1][0].Text)
}

func TestEmailGateway_ResolveRecipient(t *testing.T) {
	tests := []struct {
		name     string
		domain   string
		ref      string
		wantType string
		wantID   string
		wantErr  bool
	}{
		{name: "email", ref: "stu@example.com", wantType: "email", wantID: "stu@example.com"},
		{name: "malformed email", ref: "stu@nowhere", wantErr: true},
		{name: "open id", ref: "ou_abc123", wantType: "open_id", wantID: "ou_abc123"},
		{name: "bare ref with domain", domain: "@campus.edu", ref: "s1024", wantType: "email", wantID: "s1024@campus.edu"},
		{name: "bare ref without domain", ref: "s1024", wantErr: true},
		{name: "empty", ref: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := NewEmailGatewayWithCreator(&mockCreator{}, GatewayConfig{EmailDomain: tt.domain}, zap.NewNop())
			idType, id, err := gw.resolveRecipient(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, idType)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestEmailGateway_Failures(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		creator := &mockCreator{createFunc: func(ctx context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error) {
			return nil, errors.New("connection reset")
		}}
		gw := NewEmailGatewayWithCreator(creator, GatewayConfig{}, zap.NewNop())
		assert.ErrorContains(t, gw.Send(context.Background(), testMessage("a@b.co")), "connection reset")
	})

	t.Run("api error", func(t *testing.T) {
		creator := &mockCreator{createFunc: func(ctx context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error) {
			return &larkim.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230013, Msg: "bot has no availability to this user"}}, nil
		}}
		gw := NewEmailGatewayWithCreator(creator, GatewayConfig{}, zap.NewNop())
		assert.ErrorContains(t, gw.Send(context.Background(), testMessage("a@b.co")), "code=230013")
	})

	t.Run("unresolvable recipient", func(t *testing.T) {
		creator := &mockCreator{}
		gw := NewEmailGatewayWithCreator(creator, GatewayConfig{}, zap.NewNop())
		assert.Error(t, gw.Send(context.Background(), testMessage("s1024")))
		assert.Empty(t, creator.requests)
	})
}
