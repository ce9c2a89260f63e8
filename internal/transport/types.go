package transport

import (
	"context"
	"errors"
)

// ErrSend wraps any transport-side delivery failure. Callers use errors.Is on
// it to separate delivery problems (recoverable, logged) from cancellation.
var ErrSend = errors.New("transport send failed")

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter delivers a rendered message to one recipient. Recipients are opaque
// chat/channel identifiers; the adapter decides how to address them.
type Adapter interface {
	SendText(ctx context.Context, recipient string, text string, opt SendOptions) error
}
