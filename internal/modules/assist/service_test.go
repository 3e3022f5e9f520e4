package assist_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/retail-billing/internal/modules/assist"
	"github.com/georgemunganga/retail-billing/internal/modules/catalog"
	"github.com/georgemunganga/retail-billing/internal/modules/ledger"
)

// fakeGenerator answers from function fields; nil fields succeed with fixed data.
type fakeGenerator struct {
	mu        sync.Mutex
	prompts   []string
	image     func(prompt string) (assist.Image, error)
	edit      func(src assist.Image, prompt string) (assist.Image, error)
	recommend func(prompt string) ([]int, error)
	start     func(req assist.VideoRequest) (assist.VideoOperation, error)
	poll      func(op assist.VideoOperation) (assist.VideoOperation, error)
}

func (f *fakeGenerator) record(p string) {
	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, prompt string) (assist.Image, error) {
	f.record(prompt)
	if f.image != nil {
		return f.image(prompt)
	}
	return assist.Image{Data: []byte("png"), MIMEType: "image/png"}, nil
}

func (f *fakeGenerator) EditImage(ctx context.Context, src assist.Image, prompt string) (assist.Image, error) {
	f.record(prompt)
	if f.edit != nil {
		return f.edit(src, prompt)
	}
	return assist.Image{Data: append([]byte("edited-"), src.Data...), MIMEType: "image/png"}, nil
}

func (f *fakeGenerator) Recommend(ctx context.Context, prompt string) ([]int, error) {
	f.record(prompt)
	if f.recommend != nil {
		return f.recommend(prompt)
	}
	return nil, nil
}

func (f *fakeGenerator) StartVideo(ctx context.Context, req assist.VideoRequest) (assist.VideoOperation, error) {
	if f.start != nil {
		return f.start(req)
	}
	return assist.VideoOperation{Name: "operations/1"}, nil
}

func (f *fakeGenerator) PollVideo(ctx context.Context, op assist.VideoOperation) (assist.VideoOperation, error) {
	if f.poll != nil {
		return f.poll(op)
	}
	return assist.VideoOperation{Name: op.Name, Done: true, URI: "https://example.test/video.mp4"}, nil
}

func (f *fakeGenerator) OpenVideo(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	return io.NopCloser(strings.NewReader("mp4:" + uri)), "video/mp4", nil
}

func newCatalog() catalog.Service {
	return catalog.NewService(catalog.NewMemoryRepository(catalog.DefaultProducts()), zap.NewNop())
}

func newAssist(t *testing.T, gen assist.Generator, products catalog.Service) assist.Service {
	t.Helper()
	svc := assist.NewService(gen, products, assist.Options{
		Concurrency:       3,
		Timeout:           time.Second,
		VideoPollInterval: 5 * time.Millisecond,
		VideoTimeout:      time.Second,
	}, zap.NewNop())
	t.Cleanup(svc.Close)
	return svc
}

func snapshotOf(t *testing.T, products catalog.Service, ids ...int) ledger.Snapshot {
	t.Helper()
	bill := ledger.NewService(ledger.DefaultPolicy(), products, zap.NewNop())
	for _, id := range ids {
		_, err := bill.Add(context.Background(), id)
		require.NoError(t, err)
	}
	snap := bill.Current(context.Background())
	snap.Version = 0
	return snap
}

func TestDataURL_RoundTrip(t *testing.T) {
	img := assist.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}
	got, err := assist.ParseDataURL(img.DataURL())
	require.NoError(t, err)
	assert.Equal(t, img, got)

	_, err = assist.ParseDataURL("https://example.test/a.png")
	assert.Error(t, err)
	_, err = assist.ParseDataURL("data:image/png,plain")
	assert.Error(t, err)
}

func TestAvatar(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newAssist(t, gen, newCatalog())

	url, err := svc.Avatar(context.Background(), "Asha")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	assert.Contains(t, gen.prompts[0], "cashier named 'Asha'")

	disabled := newAssist(t, assist.NewDisabledGenerator(), newCatalog())
	_, err = disabled.Avatar(context.Background(), "Asha")
	assert.ErrorIs(t, err, assist.ErrAssistDisabled)
}

func TestFillMissingImages_FailuresLeaveProductUnchanged(t *testing.T) {
	ctx := context.Background()
	products := newCatalog()
	gen := &fakeGenerator{image: func(prompt string) (assist.Image, error) {
		if strings.Contains(prompt, "Tata Salt") {
			return assist.Image{}, errors.New("quota exceeded")
		}
		return assist.Image{Data: []byte("img"), MIMEType: "image/png"}, nil
	}}
	svc := newAssist(t, gen, products)

	missing, err := products.MissingImages(ctx)
	require.NoError(t, err)

	res, err := svc.FillMissingImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(missing), res.Requested)
	assert.Equal(t, len(missing)-1, res.Filled)

	salt, err := products.GetProduct(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, salt.ImageURL)
	milk, err := products.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(milk.ImageURL, "data:image/png;base64,"))
	oil, err := products.GetProduct(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "https://i.imgur.com/s6aBqj7.jpeg", oil.ImageURL, "existing images are kept")
}

func TestEditProductImage(t *testing.T) {
	ctx := context.Background()
	products := newCatalog()
	gen := &fakeGenerator{}
	svc := newAssist(t, gen, products)

	_, err := svc.EditProductImage(ctx, 1, "  ")
	assert.ErrorIs(t, err, assist.ErrPromptRequired)
	_, err = svc.EditProductImage(ctx, 1, "add a retro filter")
	assert.ErrorIs(t, err, assist.ErrNoSourceImage)
	_, err = svc.EditProductImage(ctx, 99, "add a retro filter")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	src := assist.Image{Data: []byte("orig"), MIMEType: "image/png"}
	_, err = products.SetImage(ctx, 1, src.DataURL())
	require.NoError(t, err)

	url, err := svc.EditProductImage(ctx, 1, "add a retro filter")
	require.NoError(t, err)
	edited, err := assist.ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "edited-orig", string(edited.Data))

	p, _ := products.GetProduct(ctx, 1)
	assert.Equal(t, src.DataURL(), p.ImageURL, "editing only previews")
}

func TestEditProductImage_FetchesRemoteSource(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	products := newCatalog()
	var gotSrc assist.Image
	gen := &fakeGenerator{edit: func(src assist.Image, prompt string) (assist.Image, error) {
		gotSrc = src
		return assist.Image{Data: []byte("x"), MIMEType: "image/png"}, nil
	}}
	svc := newAssist(t, gen, products)
	_, err := products.SetImage(ctx, 2, srv.URL+"/milk.jpg")
	require.NoError(t, err)

	_, err = svc.EditProductImage(ctx, 2, "brighter")
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(gotSrc.Data))
	assert.Equal(t, "image/jpeg", gotSrc.MIMEType)
}

func TestSuggestions_ExcludeBillItems(t *testing.T) {
	products := newCatalog()
	gen := &fakeGenerator{recommend: func(prompt string) ([]int, error) {
		return []int{1, 11, 12}, nil
	}}
	svc := newAssist(t, gen, products)

	svc.OnBillChanged(snapshotOf(t, products, 2, 1))
	require.Eventually(t, func() bool { return !svc.Suggestions().Pending }, time.Second, 5*time.Millisecond)

	got := svc.Suggestions()
	var ids []int
	for _, p := range got.Products {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int{11, 12}, ids)

	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "just added 'Parle-G Biscuit'")
	assert.Contains(t, prompt, "Current cart items: Amul Milk 1L, Parle-G Biscuit.")
	assert.NotContains(t, prompt, `"id":1,`)
	assert.Contains(t, prompt, `"id":11,`)
}

func TestSuggestions_LastIssuedWins(t *testing.T) {
	products := newCatalog()
	release := make(chan struct{})
	gen := &fakeGenerator{recommend: func(prompt string) ([]int, error) {
		if strings.Contains(prompt, "Current cart items: Parle-G Biscuit.") {
			<-release
			return []int{5}, nil
		}
		return []int{3}, nil
	}}
	svc := newAssist(t, gen, products)

	svc.OnBillChanged(snapshotOf(t, products, 1))
	svc.OnBillChanged(snapshotOf(t, products, 1, 2))
	require.Eventually(t, func() bool { return svc.Suggestions().Seq == 2 }, time.Second, 5*time.Millisecond)

	close(release)
	svc.Close()

	got := svc.Suggestions()
	require.Len(t, got.Products, 1)
	assert.Equal(t, 3, got.Products[0].ID, "the older, slower answer is discarded")
	assert.False(t, got.Pending)
}

func TestSuggestions_EmptyBillClearsImmediately(t *testing.T) {
	products := newCatalog()
	release := make(chan struct{})
	gen := &fakeGenerator{recommend: func(string) ([]int, error) {
		<-release
		return []int{4}, nil
	}}
	svc := newAssist(t, gen, products)

	svc.OnBillChanged(snapshotOf(t, products, 1))
	assert.True(t, svc.Suggestions().Pending)
	svc.OnBillChanged(ledger.Snapshot{})

	got := svc.Suggestions()
	assert.Empty(t, got.Products)
	assert.False(t, got.Pending)

	close(release)
	svc.Close()
	assert.Empty(t, svc.Suggestions().Products, "in-flight result for the old bill is stale")
}

func TestSuggestions_IgnoreOutOfOrderBillChanges(t *testing.T) {
	ctx := context.Background()
	products := newCatalog()
	gen := &fakeGenerator{recommend: func(string) ([]int, error) { return []int{2, 3}, nil }}
	svc := newAssist(t, gen, products)
	bill := ledger.NewService(ledger.DefaultPolicy(), products, zap.NewNop())

	// The first observer stalls the Add notification until after Clear has been delivered.
	entered := make(chan struct{})
	release := make(chan struct{})
	var stalled atomic.Bool
	bill.Subscribe(func(ledger.Snapshot) {
		if stalled.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
	})
	bill.Subscribe(svc.OnBillChanged)

	added := make(chan struct{})
	go func() {
		defer close(added)
		_, err := bill.Add(ctx, 1)
		assert.NoError(t, err)
	}()
	<-entered
	bill.Clear(ctx)
	close(release)
	<-added
	svc.Close()

	assert.True(t, bill.Current(ctx).IsEmpty())
	got := svc.Suggestions()
	assert.Empty(t, got.Products, "the cleared bill is the latest state")
	assert.False(t, got.Pending)
	assert.Empty(t, gen.prompts)
}

func TestSuggestions_FailureClears(t *testing.T) {
	products := newCatalog()
	calls := 0
	gen := &fakeGenerator{recommend: func(string) ([]int, error) {
		calls++
		if calls == 1 {
			return []int{7}, nil
		}
		return nil, errors.New("bad gateway")
	}}
	svc := newAssist(t, gen, products)

	svc.OnBillChanged(snapshotOf(t, products, 1))
	require.Eventually(t, func() bool { return len(svc.Suggestions().Products) == 1 }, time.Second, 5*time.Millisecond)
	svc.OnBillChanged(snapshotOf(t, products, 1, 2))
	require.Eventually(t, func() bool { return svc.Suggestions().Seq == 2 }, time.Second, 5*time.Millisecond)

	assert.Empty(t, svc.Suggestions().Products)
}

func TestVideo_PollsUntilDone(t *testing.T) {
	ctx := context.Background()
	polls := 0
	var mu sync.Mutex
	gen := &fakeGenerator{
		start: func(req assist.VideoRequest) (assist.VideoOperation, error) {
			assert.Equal(t, "16:9", req.AspectRatio)
			return assist.VideoOperation{Name: "operations/42"}, nil
		},
		poll: func(op assist.VideoOperation) (assist.VideoOperation, error) {
			mu.Lock()
			defer mu.Unlock()
			polls++
			if polls < 3 {
				return op, nil
			}
			return assist.VideoOperation{Name: op.Name, Done: true, URI: "https://example.test/v.mp4?alt=media"}, nil
		},
	}
	svc := newAssist(t, gen, newCatalog())

	job, err := svc.StartVideo(ctx, assist.VideoRequest{Image: assist.Image{Data: []byte("img"), MIMEType: "image/png"}})
	require.NoError(t, err)
	assert.Equal(t, assist.VideoPending, job.Status)

	require.Eventually(t, func() bool {
		j, _ := svc.Video(ctx, job.ID)
		return j.Status == assist.VideoDone
	}, time.Second, 5*time.Millisecond)

	rc, mime, err := svc.OpenVideo(ctx, job.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "video/mp4", mime)
	assert.Equal(t, "mp4:https://example.test/v.mp4?alt=media", string(body))
}

func TestVideo_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newAssist(t, &fakeGenerator{}, newCatalog())

	_, err := svc.StartVideo(ctx, assist.VideoRequest{})
	assert.ErrorIs(t, err, assist.ErrImageRequired)
	_, err = svc.StartVideo(ctx, assist.VideoRequest{Image: assist.Image{Data: []byte("x")}, AspectRatio: "4:3"})
	assert.ErrorIs(t, err, assist.ErrInvalidAspect)
	_, err = svc.Video(ctx, "nope")
	assert.ErrorIs(t, err, assist.ErrJobNotFound)
}

func TestVideo_InvalidKeyMessage(t *testing.T) {
	ctx := context.Background()
	notFound := errors.New("Error 404, Message: Requested entity was not found., Status: NOT_FOUND")

	gen := &fakeGenerator{start: func(assist.VideoRequest) (assist.VideoOperation, error) {
		return assist.VideoOperation{}, notFound
	}}
	svc := newAssist(t, gen, newCatalog())
	_, err := svc.StartVideo(ctx, assist.VideoRequest{Image: assist.Image{Data: []byte("x")}})
	assert.ErrorIs(t, err, assist.ErrInvalidAPIKey)

	gen = &fakeGenerator{poll: func(assist.VideoOperation) (assist.VideoOperation, error) {
		return assist.VideoOperation{}, notFound
	}}
	svc = newAssist(t, gen, newCatalog())
	job, err := svc.StartVideo(ctx, assist.VideoRequest{Image: assist.Image{Data: []byte("x")}, AspectRatio: "9:16"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		j, _ := svc.Video(ctx, job.ID)
		return j.Status == assist.VideoFailed
	}, time.Second, 5*time.Millisecond)
	j, _ := svc.Video(ctx, job.ID)
	assert.Equal(t, assist.InvalidAPIKeyMessage, j.Error)
}

func TestVideo_TimesOut(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{poll: func(op assist.VideoOperation) (assist.VideoOperation, error) { return op, nil }}
	svc := assist.NewService(gen, newCatalog(), assist.Options{
		VideoPollInterval: 5 * time.Millisecond,
		VideoTimeout:      40 * time.Millisecond,
	}, zap.NewNop())
	defer svc.Close()

	job, err := svc.StartVideo(ctx, assist.VideoRequest{Image: assist.Image{Data: []byte("x")}})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		j, _ := svc.Video(ctx, job.ID)
		return j.Status == assist.VideoFailed
	}, time.Second, 5*time.Millisecond)

	_, _, err = svc.OpenVideo(ctx, job.ID)
	assert.ErrorIs(t, err, assist.ErrVideoNotReady)
}

func TestHandler_StartVideoMultipart(t *testing.T) {
	svc := newAssist(t, &fakeGenerator{}, newCatalog())
	r := chi.NewRouter()
	allow := func(next http.Handler) http.Handler { return next }
	assist.NewHandler(svc).RegisterRoutes(r, allow)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "shelf.png")
	require.NoError(t, err)
	fw.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	mw.WriteField("prompt", "a gentle breeze")
	mw.WriteField("aspect", "9:16")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assist/videos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"aspectRatio":"9:16"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/assist/videos/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_DisabledAssist(t *testing.T) {
	ctx := context.Background()
	products := newCatalog()
	_, err := products.SetImage(ctx, 1, assist.Image{Data: []byte("x"), MIMEType: "image/png"}.DataURL())
	require.NoError(t, err)
	svc := newAssist(t, assist.NewDisabledGenerator(), products)
	r := chi.NewRouter()
	assist.NewHandler(svc).RegisterRoutes(r, func(next http.Handler) http.Handler { return next })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/assist/products/1/edit", strings.NewReader(`{"prompt":"x"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/assist/products/1/edit", strings.NewReader(`{"prompt":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/assist/suggestions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending":false`)
}
