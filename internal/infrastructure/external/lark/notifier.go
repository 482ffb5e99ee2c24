package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/erp-approvals/internal/application/port"
)

const (
	defaultReceiveIDType = "open_id"
	msgTypeText          = "text"
)

// messageCreator is the slice of the IM API the notifier uses
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Notifier sends plain text chat messages through the Lark IM API
type Notifier struct {
	messages      messageCreator
	receiveIDType string
	logger        *zap.Logger
}

// NewNotifier creates a notifier backed by a Lark SDK client
func NewNotifier(cfg Config, logger *zap.Logger) *Notifier {
	return newNotifier(NewSDKClient(cfg, logger).Im.Message, cfg.ReceiveIDType, logger)
}

func newNotifier(messages messageCreator, receiveIDType string, logger *zap.Logger) *Notifier {
	if receiveIDType == "" {
		receiveIDType = defaultReceiveIDType
	}
	return &Notifier{
		messages:      messages,
		receiveIDType: receiveIDType,
		logger:        logger,
	}
}

// SendText delivers text to userID
func (n *Notifier) SendText(ctx context.Context, userID, text string) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	if text == "" {
		return fmt.Errorf("text cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(n.receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(userID).
			MsgType(msgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.messages.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("receive_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("receive_id", userID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	n.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", userID))

	return nil
}

// Verify interface compliance
var _ port.ChatNotifier = (*Notifier)(nil)
