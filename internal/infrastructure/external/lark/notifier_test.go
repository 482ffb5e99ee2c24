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
)

type mockMessages struct {
	createFunc func(ctx context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error)
	last       *larkim.CreateMessageReq
}

func (m *mockMessages) Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	m.last = req
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	id := "om_1"
	return &larkim.CreateMessageResp{Data: &larkim.CreateMessageRespData{MessageId: &id}}, nil
}

func TestNotifier_SendText(t *testing.T) {
	messages := &mockMessages{}
	n := newNotifier(messages, "", zap.NewNop())

	err := n.SendText(context.Background(), "ou_123", `PO "42" needs approval`)
	require.NoError(t, err)

	require.NotNil(t, messages.last)
	assert.Equal(t, "ou_123", *messages.last.Body.ReceiveId)
	assert.Equal(t, msgTypeText, *messages.last.Body.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*messages.last.Body.Content), &content))
	assert.Equal(t, `PO "42" needs approval`, content["text"])
}

func TestNotifier_SendText_Failures(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		text   string
		create func(ctx context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error)
	}{
		{name: "empty user", userID: "", text: "hi"},
		{name: "empty text", userID: "ou_1", text: ""},
		{
			name: "transport error", userID: "ou_1", text: "hi",
			create: func(ctx context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error) {
				return nil, errors.New("connection reset")
			},
		},
		{
			name: "api error", userID: "ou_1", text: "hi",
			create: func(ctx context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error) {
				return &larkim.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230001, Msg: "invalid receive_id"}}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newNotifier(&mockMessages{createFunc: tt.create}, "user_id", zap.NewNop())
			assert.Error(t, n.SendText(context.Background(), tt.userID, tt.text))
		})
	}
}
