package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/genai"
)

// Generator is the interface every generative collaborator adapter must implement.
type Generator interface {
	// GenerateImage draws a new image from a text prompt.
	GenerateImage(ctx context.Context, prompt string) (Image, error)
	// EditImage applies a text instruction to src.
	EditImage(ctx context.Context, src Image, prompt string) (Image, error)
	// Recommend answers a recommendation prompt with product ids.
	Recommend(ctx context.Context, prompt string) ([]int, error)
	// StartVideo begins a long-running video generation.
	StartVideo(ctx context.Context, req VideoRequest) (VideoOperation, error)
	// PollVideo refreshes the state of a running generation.
	PollVideo(ctx context.Context, op VideoOperation) (VideoOperation, error)
	// OpenVideo streams a finished video from its download URI.
	OpenVideo(ctx context.Context, uri string) (io.ReadCloser, string, error)
}

// Models names the collaborator models used for each task.
type Models struct {
	Image string
	Text  string
	Video string
}

// ── Disabled Adapter ─────────────────────────────────────────────────────────

type disabledGenerator struct{}

// NewDisabledGenerator is used when no API key is configured. Every call fails with ErrAssistDisabled.
func NewDisabledGenerator() Generator { return disabledGenerator{} }

func (disabledGenerator) GenerateImage(context.Context, string) (Image, error) {
	return Image{}, ErrAssistDisabled
}

func (disabledGenerator) EditImage(context.Context, Image, string) (Image, error) {
	return Image{}, ErrAssistDisabled
}

func (disabledGenerator) Recommend(context.Context, string) ([]int, error) {
	return nil, ErrAssistDisabled
}

func (disabledGenerator) StartVideo(context.Context, VideoRequest) (VideoOperation, error) {
	return VideoOperation{}, ErrAssistDisabled
}

func (disabledGenerator) PollVideo(context.Context, VideoOperation) (VideoOperation, error) {
	return VideoOperation{}, ErrAssistDisabled
}

func (disabledGenerator) OpenVideo(context.Context, string) (io.ReadCloser, string, error) {
	return nil, "", ErrAssistDisabled
}

// ── Gemini Adapter ───────────────────────────────────────────────────────────

type geminiGenerator struct {
	client *genai.Client
	apiKey string
	models Models
	http   *http.Client
}

// NewGeminiGenerator builds the Gemini API adapter.
func NewGeminiGenerator(ctx context.Context, apiKey string, models Models) (Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &geminiGenerator{client: client, apiKey: apiKey, models: models, http: http.DefaultClient}, nil
}

var imageOnly = &genai.GenerateContentConfig{
	ResponseModalities: []string{string(genai.ModalityImage)},
}

func (g *geminiGenerator) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.models.Image, contents, imageOnly)
	if err != nil {
		return Image{}, err
	}
	return firstImage(resp)
}

func (g *geminiGenerator) EditImage(ctx context.Context, src Image, prompt string) (Image, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(src.Data, src.MIMEType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.models.Image, contents, imageOnly)
	if err != nil {
		return Image{}, err
	}
	return firstImage(resp)
}

// firstImage returns the first inline image part of the first candidate.
func firstImage(resp *genai.GenerateContentResponse) (Image, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Image{}, ErrNoImageReturned
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return Image{Data: part.InlineData.Data, MIMEType: mime}, nil
		}
	}
	return Image{}, ErrNoImageReturned
}

var recommendationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"recommendations": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeNumber},
		},
	},
}

func (g *geminiGenerator) Recommend(ctx context.Context, prompt string) ([]int, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.models.Text, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   recommendationSchema,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Recommendations []float64 `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(resp.Text()), &out); err != nil {
		return nil, fmt.Errorf("decoding recommendations: %w", err)
	}
	ids := make([]int, 0, len(out.Recommendations))
	for _, f := range out.Recommendations {
		ids = append(ids, int(f))
	}
	return ids, nil
}

func (g *geminiGenerator) StartVideo(ctx context.Context, req VideoRequest) (VideoOperation, error) {
	op, err := g.client.Models.GenerateVideos(ctx, g.models.Video, req.Prompt,
		&genai.Image{ImageBytes: req.Image.Data, MIMEType: req.Image.MIMEType},
		&genai.GenerateVideosConfig{
			NumberOfVideos: 1,
			Resolution:     "720p",
			AspectRatio:    req.AspectRatio,
		})
	if err != nil {
		return VideoOperation{}, err
	}
	return toOperation(op), nil
}

func (g *geminiGenerator) PollVideo(ctx context.Context, op VideoOperation) (VideoOperation, error) {
	next, err := g.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: op.Name}, nil)
	if err != nil {
		return op, err
	}
	return toOperation(next), nil
}

func toOperation(op *genai.GenerateVideosOperation) VideoOperation {
	out := VideoOperation{Name: op.Name, Done: op.Done}
	if op.Error != nil {
		if msg, ok := op.Error["message"].(string); ok {
			out.Err = msg
		} else {
			out.Err = fmt.Sprint(op.Error)
		}
	}
	if op.Response != nil && len(op.Response.GeneratedVideos) > 0 {
		if v := op.Response.GeneratedVideos[0].Video; v != nil {
			out.URI = v.URI
		}
	}
	return out
}

// OpenVideo downloads a finished video. The download URI needs the API key as a query parameter.
func (g *geminiGenerator) OpenVideo(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, "", fmt.Errorf("parsing video uri: %w", err)
	}
	q := u.Query()
	q.Set("key", g.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("video download: unexpected status %d", resp.StatusCode)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || strings.HasPrefix(mime, "application/octet-stream") {
		mime = "video/mp4"
	}
	return resp.Body, mime, nil
}
