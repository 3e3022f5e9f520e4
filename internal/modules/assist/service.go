package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/georgemunganga/retail-billing/internal/modules/catalog"
	"github.com/georgemunganga/retail-billing/internal/modules/ledger"
)

// Service is the generative assist layer: avatars, product images, suggestions and videos.
// None of its operations change the bill.
type Service interface {
	// Avatar draws a profile picture for a cashier and returns it as a data URL.
	Avatar(ctx context.Context, name string) (string, error)
	// FillMissingImages generates images for catalog products that have none. Failures are
	// logged per product and leave that product unchanged.
	FillMissingImages(ctx context.Context) (FillImagesResponse, error)
	// EditProductImage returns an edited copy of the product's image for preview.
	EditProductImage(ctx context.Context, productID int, prompt string) (string, error)

	// OnBillChanged refreshes suggestions for a new bill state. It is a ledger observer.
	OnBillChanged(snap ledger.Snapshot)
	Suggestions() Suggestions

	StartVideo(ctx context.Context, req VideoRequest) (VideoJob, error)
	Video(ctx context.Context, id string) (VideoJob, error)
	OpenVideo(ctx context.Context, id string) (io.ReadCloser, string, error)

	// Close stops background work.
	Close()
}

// Options tune the assist service.
type Options struct {
	Concurrency       int
	Timeout           time.Duration
	VideoPollInterval time.Duration
	VideoTimeout      time.Duration
	HTTPClient        *http.Client
}

type service struct {
	gen     Generator
	catalog catalog.Service
	opts    Options
	logger  *zap.Logger

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	issued      uint64
	applied     uint64
	billVersion uint64
	pending     bool
	suggestions []catalog.Product
	jobs        map[string]*videoJob
}

type videoJob struct {
	VideoJob
	op VideoOperation
}

func NewService(gen Generator, products catalog.Service, opts Options, logger *zap.Logger) Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.VideoPollInterval <= 0 {
		opts.VideoPollInterval = 10 * time.Second
	}
	if opts.VideoTimeout <= 0 {
		opts.VideoTimeout = 10 * time.Minute
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	root, cancel := context.WithCancel(context.Background())
	return &service{
		gen:     gen,
		catalog: products,
		opts:    opts,
		logger:  logger,
		root:    root,
		cancel:  cancel,
		jobs:    map[string]*videoJob{},
	}
}

func (s *service) Close() {
	s.cancel()
	s.wg.Wait()
}

// ── Images ───────────────────────────────────────────────────────────────────

func avatarPrompt(name string) string {
	return fmt.Sprintf("Generate a unique, abstract, minimalist professional avatar for a cashier named '%s'. "+
		"Use a vibrant, friendly color palette with a clean, dark-grey background. "+
		"The avatar should be modern and geometric, not a realistic portrait.", name)
}

func productPrompt(p catalog.Product) string {
	return fmt.Sprintf("A professional, clean product photograph of %s, on a dark background.", p.Name)
}

func (s *service) Avatar(ctx context.Context, name string) (string, error) {
	img, err := s.gen.GenerateImage(ctx, avatarPrompt(name))
	if err != nil {
		s.logger.Warn("avatar generation failed", zap.String("cashier", name), zap.Error(err))
		return "", mapGatewayError(err)
	}
	return img.DataURL(), nil
}

func (s *service) FillMissingImages(ctx context.Context) (FillImagesResponse, error) {
	missing, err := s.catalog.MissingImages(ctx)
	if err != nil {
		return FillImagesResponse{}, err
	}
	if len(missing) == 0 {
		return FillImagesResponse{}, nil
	}

	var filled atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, p := range missing {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
			defer cancel()

			img, err := s.gen.GenerateImage(callCtx, productPrompt(p))
			if err != nil {
				s.logger.Warn("product image generation failed",
					zap.Int("product_id", p.ID), zap.String("product", p.Name), zap.Error(err))
				return nil
			}
			if _, err := s.catalog.SetImage(ctx, p.ID, img.DataURL()); err != nil {
				s.logger.Warn("saving generated image failed", zap.Int("product_id", p.ID), zap.Error(err))
				return nil
			}
			filled.Add(1)
			return nil
		})
	}
	g.Wait()

	res := FillImagesResponse{Requested: len(missing), Filled: int(filled.Load())}
	s.logger.Info("missing product images filled", zap.Int("requested", res.Requested), zap.Int("filled", res.Filled))
	return res, nil
}

func (s *service) EditProductImage(ctx context.Context, productID int, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrPromptRequired
	}
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return "", err
	}
	if p.ImageURL == "" {
		return "", ErrNoSourceImage
	}
	src, err := s.fetchImage(ctx, p.ImageURL)
	if err != nil {
		s.logger.Warn("loading source image failed", zap.Int("product_id", productID), zap.Error(err))
		return "", err
	}
	edited, err := s.gen.EditImage(ctx, src, prompt)
	if err != nil {
		s.logger.Warn("image edit failed", zap.Int("product_id", productID), zap.Error(err))
		return "", mapGatewayError(err)
	}
	return edited.DataURL(), nil
}

// fetchImage loads a product image from a data URL or over HTTP.
func (s *service) fetchImage(ctx context.Context, ref string) (Image, error) {
	if strings.HasPrefix(ref, "data:") {
		return ParseDataURL(ref)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return Image{}, err
	}
	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("fetching image: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return Image{}, fmt.Errorf("reading image: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return Image{Data: data, MIMEType: mime}, nil
}

// ── Suggestions ──────────────────────────────────────────────────────────────

type candidate struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

func suggestionPrompt(last string, inBill []string, candidates []candidate) string {
	list, _ := json.Marshal(candidates)
	return fmt.Sprintf("A customer just added '%s' to their cart. Based on the items in the cart, "+
		"suggest 3 complementary products from the available list.\n"+
		"Current cart items: %s.\n"+
		"Available products for suggestion: %s.\n"+
		"Respond with ONLY a JSON object containing an array of the recommended product IDs.",
		last, strings.Join(inBill, ", "), list)
}

func (s *service) OnBillChanged(snap ledger.Snapshot) {
	s.mu.Lock()
	if snap.Version != 0 {
		if snap.Version <= s.billVersion {
			s.mu.Unlock()
			s.logger.Debug("ignoring out-of-order bill change", zap.Uint64("version", snap.Version))
			return
		}
		s.billVersion = snap.Version
	}
	s.issued++
	seq := s.issued
	if len(snap.Items) == 0 {
		s.suggestions = nil
		s.pending = false
		s.applied = seq
		s.mu.Unlock()
		return
	}
	s.pending = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		products, err := s.suggest(snap)
		if err != nil {
			s.logger.Warn("suggestion request failed", zap.Uint64("seq", seq), zap.Error(err))
		}
		s.applySuggestions(seq, products)
	}()
}

func (s *service) suggest(snap ledger.Snapshot) ([]catalog.Product, error) {
	ctx, cancel := context.WithTimeout(s.root, s.opts.Timeout)
	defer cancel()

	all, err := s.catalog.ListProducts(ctx, catalog.Filter{})
	if err != nil {
		return nil, err
	}
	inBill := make(map[int]bool, len(snap.Items))
	names := make([]string, 0, len(snap.Items))
	for _, li := range snap.Items {
		inBill[li.Product.ID] = true
		names = append(names, li.Product.Name)
	}
	var candidates []candidate
	byID := map[int]catalog.Product{}
	for _, p := range all {
		if inBill[p.ID] {
			continue
		}
		candidates = append(candidates, candidate{ID: p.ID, Name: p.Name, Category: p.Category})
		byID[p.ID] = p
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	last, _ := snap.LastAdded()
	ids, err := s.gen.Recommend(ctx, suggestionPrompt(last.Product.Name, names, candidates))
	if err != nil {
		return nil, err
	}
	wanted := map[int]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	// Catalog order, like the product grid.
	var out []catalog.Product
	for _, c := range candidates {
		if wanted[c.ID] {
			out = append(out, byID[c.ID])
		}
	}
	return out, nil
}

// applySuggestions installs a result only if no newer request has been issued since.
func (s *service) applySuggestions(seq uint64, products []catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.issued {
		s.logger.Debug("discarding stale suggestions", zap.Uint64("seq", seq), zap.Uint64("latest", s.issued))
		return
	}
	s.suggestions = products
	s.pending = false
	s.applied = seq
}

func (s *service) Suggestions() Suggestions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Suggestions{
		Products: append([]catalog.Product{}, s.suggestions...),
		Pending:  s.pending,
		Seq:      s.applied,
	}
}

// ── Videos ───────────────────────────────────────────────────────────────────

func (s *service) StartVideo(ctx context.Context, req VideoRequest) (VideoJob, error) {
	if len(req.Image.Data) == 0 {
		return VideoJob{}, ErrImageRequired
	}
	switch req.AspectRatio {
	case "":
		req.AspectRatio = AspectLandscape
	case AspectLandscape, AspectPortrait:
	default:
		return VideoJob{}, ErrInvalidAspect
	}

	op, err := s.gen.StartVideo(ctx, req)
	if err != nil {
		s.logger.Error("video generation failed to start", zap.Error(err))
		return VideoJob{}, mapGatewayError(err)
	}

	now := time.Now()
	job := &videoJob{
		VideoJob: VideoJob{
			ID:          uuid.NewString(),
			Status:      VideoPending,
			AspectRatio: req.AspectRatio,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		op: op,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	s.logger.Info("video generation started", zap.String("job_id", job.ID), zap.String("operation", op.Name))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pollVideo(job.ID, op)
	}()
	return job.VideoJob, nil
}

// pollVideo checks the operation every poll interval until it finishes, fails or times out.
func (s *service) pollVideo(id string, op VideoOperation) {
	ctx, cancel := context.WithTimeout(s.root, s.opts.VideoTimeout)
	defer cancel()
	ticker := time.NewTicker(s.opts.VideoPollInterval)
	defer ticker.Stop()

	for !op.Done {
		select {
		case <-ctx.Done():
			s.finishVideo(id, op, fmt.Errorf("video generation timed out"))
			return
		case <-ticker.C:
		}
		next, err := s.gen.PollVideo(ctx, op)
		if err != nil {
			s.finishVideo(id, op, err)
			return
		}
		op = next
	}

	switch {
	case op.Err != "":
		s.finishVideo(id, op, errors.New(op.Err))
	case op.URI == "":
		s.finishVideo(id, op, fmt.Errorf("video generation finished, but no download link was provided"))
	default:
		s.finishVideo(id, op, nil)
	}
}

func (s *service) finishVideo(id string, op VideoOperation, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.op = op
	job.UpdatedAt = time.Now()
	if err != nil {
		job.Status = VideoFailed
		job.Error = "An error occurred while checking video status. Please try again."
		if errors.Is(mapGatewayError(err), ErrInvalidAPIKey) {
			job.Error = InvalidAPIKeyMessage
		}
		s.logger.Warn("video generation failed", zap.String("job_id", id), zap.Error(err))
		return
	}
	job.Status = VideoDone
	job.URI = op.URI
	s.logger.Info("video generation finished", zap.String("job_id", id))
}

func (s *service) Video(ctx context.Context, id string) (VideoJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return VideoJob{}, ErrJobNotFound
	}
	return job.VideoJob, nil
}

func (s *service) OpenVideo(ctx context.Context, id string) (io.ReadCloser, string, error) {
	job, err := s.Video(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if job.Status != VideoDone {
		return nil, "", ErrVideoNotReady
	}
	rc, mime, err := s.gen.OpenVideo(ctx, job.URI)
	if err != nil {
		return nil, "", mapGatewayError(err)
	}
	return rc, mime, nil
}

// mapGatewayError turns the collaborator's "entity not found" reply into ErrInvalidAPIKey.
func mapGatewayError(err error) error {
	if err != nil && strings.Contains(err.Error(), "Requested entity was not found.") {
		return fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
	}
	return err
}
