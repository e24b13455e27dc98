// Package lark delivers student notifications through the Lark open platform.
package lark

import (
	"context"
	"fmt"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 10 * time.Second

// Config holds Lark app credentials
type Config struct {
	AppID     string
	AppSecret string
	// BaseURL overrides the open platform endpoint, e.g. for Lark international
	BaseURL string
	// RequestTimeout bounds each API call, 10s when unset
	RequestTimeout time.Duration
}

// SDKClient owns the SDK client; tenant tokens are cached inside it
type SDKClient struct {
	client *lark.Client
}

// NewSDKClient builds a client whose SDK logging goes through logger
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	opts := []lark.ClientOptionFunc{
		lark.WithLogger(sdkLogger{logger: logger.Named("lark")}),
		lark.WithLogLevel(larkcore.LogLevelWarn),
		lark.WithEnableTokenCache(true),
		lark.WithReqTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	return &SDKClient{client: lark.NewClient(cfg.AppID, cfg.AppSecret, opts...)}
}

// Messages exposes the im.v1 message resource
func (c *SDKClient) Messages() MessageCreator {
	return c.client.Im.Message
}

// sdkLogger adapts zap to larkcore.Logger
type sdkLogger struct {
	logger *zap.Logger
}

func (l sdkLogger) Debug(ctx context.Context, args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l sdkLogger) Info(ctx context.Context, args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l sdkLogger) Warn(ctx context.Context, args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l sdkLogger) Error(ctx context.Context, args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

var _ larkcore.Logger = sdkLogger{}
