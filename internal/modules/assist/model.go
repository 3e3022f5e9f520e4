package assist

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgemunganga/retail-billing/internal/modules/catalog"
)

// InvalidAPIKeyMessage is shown to the operator when the collaborator rejects the key.
const InvalidAPIKeyMessage = "Your API key is invalid. Please select a valid key."

var (
	ErrAssistDisabled  = errors.New("assist is disabled: no API key configured")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrNoImageReturned = errors.New("no image in generator response")
	ErrPromptRequired  = errors.New("prompt is required")
	ErrImageRequired   = errors.New("an image is required")
	ErrNoSourceImage   = errors.New("product has no image to edit")
	ErrInvalidAspect   = errors.New("aspect ratio must be 16:9 or 9:16")
	ErrJobNotFound     = errors.New("video job not found")
	ErrVideoNotReady   = errors.New("video is not ready")
)

// Image is raw image bytes with their MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL encodes the image as a base64 data URL.
func (i Image) DataURL() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ParseDataURL decodes a base64 data URL.
func ParseDataURL(s string) (Image, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return Image{}, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return Image{}, fmt.Errorf("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("decoding data URL: %w", err)
	}
	return Image{Data: data, MIMEType: strings.TrimSuffix(meta, ";base64")}, nil
}

// Aspect ratios accepted for videos.
const (
	AspectLandscape = "16:9"
	AspectPortrait  = "9:16"
)

// VideoRequest animates Image into a short clip.
type VideoRequest struct {
	Prompt      string
	Image       Image
	AspectRatio string
}

// VideoOperation is the collaborator's handle on a running video generation.
type VideoOperation struct {
	Name string
	Done bool
	URI  string
	Err  string
}

type VideoStatus string

const (
	VideoPending VideoStatus = "pending"
	VideoDone    VideoStatus = "done"
	VideoFailed  VideoStatus = "failed"
)

// VideoJob tracks one video request.
type VideoJob struct {
	ID          string      `json:"id"`
	Status      VideoStatus `json:"status"`
	AspectRatio string      `json:"aspectRatio"`
	URI         string      `json:"uri,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Suggestions are the products recommended for the current bill.
type Suggestions struct {
	Products []catalog.Product `json:"products"`
	Pending  bool              `json:"pending"`
	Seq      uint64            `json:"seq"`
}

type EditImageRequest struct {
	Prompt string `json:"prompt"`
}

type EditImageResponse struct {
	ProductID int    `json:"product_id"`
	ImageURL  string `json:"imageUrl"`
}

type FillImagesResponse struct {
	Requested int `json:"requested"`
	Filled    int `json:"filled"`
}
