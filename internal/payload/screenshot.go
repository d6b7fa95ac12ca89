package payload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNoScreenshot is returned when the result carries no page capture
var ErrNoScreenshot = errors.New("no screenshot")

// Capture is a decoded page capture
type Capture struct {
	Data      []byte
	MIME      string
	Extension string
}

// Size returns the capture size in bytes
func (c Capture) Size() int {
	return len(c.Data)
}

// DecodeScreenshot decodes the base64 page capture and detects its type.
// Both bare base64 and data URLs are accepted.
func (r *SuccessResult) DecodeScreenshot() (Capture, error) {
	if r.Screenshot == nil {
		return Capture{}, ErrNoScreenshot
	}
	encoded := *r.Screenshot
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i >= 0 {
			encoded = encoded[i+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return Capture{}, fmt.Errorf("error decoding screenshot: %w", err)
	}

	mt := mimetype.Detect(data)
	return Capture{Data: data, MIME: mt.String(), Extension: mt.Extension()}, nil
}

// ScreenshotDataURL returns the capture as a data URL suitable for an <img> src.
// The media type is sniffed from the decoded bytes; an undecodable capture is
// labelled application/octet-stream.
func (r *SuccessResult) ScreenshotDataURL() (string, bool) {
	if r.Screenshot == nil {
		return "", false
	}
	if strings.HasPrefix(*r.Screenshot, "data:") {
		return *r.Screenshot, true
	}
	mime := "application/octet-stream"
	if c, err := r.DecodeScreenshot(); err == nil {
		mime = c.MIME
	}
	return "data:" + mime + ";base64," + *r.Screenshot, true
}
