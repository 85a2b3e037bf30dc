package client

import (
	"context"
)

// TextClient is a remote vision model that reads text out of an image
type TextClient interface {
	ExtractText(ctx context.Context, model, prompt, imgB64 string) (string, error)
}
