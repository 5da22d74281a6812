package analysis

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var ErrNotConfigured = errors.New("analysis provider not configured")

const ReceiptPrompt = "List the total amount spent in this receipt and itemize it. Please provide a clear breakdown of all items and their individual costs, then give the total amount spent."

type Image struct {
	Data     []byte
	MIMEType string
}

// Provider is a hosted multimodal model able to describe an image.
type Provider interface {
	Model() string
	Analyze(ctx context.Context, img Image, prompt string) (string, error)
	// Ping runs a tiny generation round trip.
	Ping(ctx context.Context) error
	// Check confirms the model is reachable without generating anything.
	Check(ctx context.Context) error
}

// DetectMIME sniffs the image type, defaulting to JPEG for anything the
// sniffer does not recognise as an image.
func DetectMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return "image/jpeg"
}

func IsImage(data []byte) bool {
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}
