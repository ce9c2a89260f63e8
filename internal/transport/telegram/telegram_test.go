package telegram

import (
	"context"
	"errors"
	"testing"

	"taskwatch/internal/transport"
	"taskwatch/pkg/logx"
)

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestSendTextRejectsBadRecipient(t *testing.T) {
	t.Parallel()
	a, err := New(Config{Token: "123:abc", Offline: true}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = a.SendText(context.Background(), "not-a-chat-id", "hello", transport.SendOptions{})
	if !errors.Is(err, transport.ErrSend) {
		t.Fatalf("err = %v, want transport.ErrSend", err)
	}
}
