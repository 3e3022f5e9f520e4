package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/retail-billing/internal/modules/auth"
	"github.com/georgemunganga/retail-billing/internal/modules/catalog"
	"github.com/georgemunganga/retail-billing/internal/modules/ledger"
)

type fakeAvatars struct {
	mu    sync.Mutex
	calls []string
	err   error
	block chan struct{}
}

func (f *fakeAvatars) Avatar(ctx context.Context, name string) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.err != nil {
		return "", f.err
	}
	return "data:image/png;base64,QUJD", nil
}

type avatarFunc func(ctx context.Context, name string) (string, error)

func (f avatarFunc) Avatar(ctx context.Context, name string) (string, error) { return f(ctx, name) }

func newLedger(t *testing.T) ledger.Service {
	t.Helper()
	products := catalog.NewService(catalog.NewMemoryRepository(catalog.DefaultProducts()), zap.NewNop())
	return ledger.NewService(ledger.DefaultPolicy(), products, zap.NewNop())
}

func newService(avatars auth.AvatarGenerator, bill auth.BillClearer) auth.Service {
	return auth.NewService(auth.Options{Secret: []byte("test-secret"), TTL: time.Hour}, avatars, bill, zap.NewNop())
}

func TestLogin_RequiresName(t *testing.T) {
	svc := newService(nil, newLedger(t))
	_, err := svc.Login(context.Background(), "   ")
	assert.ErrorIs(t, err, auth.ErrNameRequired)

	_, err = svc.Current(context.Background())
	assert.ErrorIs(t, err, auth.ErrNotLoggedIn)
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	svc := newService(nil, newLedger(t))
	sess, err := svc.Login(context.Background(), "  Asha ")
	require.NoError(t, err)
	assert.Equal(t, "Asha", sess.Cashier.Name)
	assert.NotEmpty(t, sess.Token)

	c, err := svc.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "Asha", c.Name)

	_, err = svc.Verify(sess.Token + "x")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	svc := newService(nil, newLedger(t))
	first, err := svc.Login(context.Background(), "Asha")
	require.NoError(t, err)
	second, err := svc.Login(context.Background(), "Ravi")
	require.NoError(t, err)

	_, err = svc.Verify(first.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	c, err := svc.Verify(second.Token)
	require.NoError(t, err)
	assert.Equal(t, "Ravi", c.Name)
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	svc := auth.NewService(auth.Options{
		Secret: []byte("s"),
		TTL:    time.Hour,
		Now:    func() time.Time { return past },
	}, nil, newLedger(t), zap.NewNop())

	sess, err := svc.Login(context.Background(), "Asha")
	require.NoError(t, err)
	_, err = svc.Verify(sess.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestLogin_GeneratesAvatarInBackground(t *testing.T) {
	avatars := &fakeAvatars{}
	svc := newService(avatars, newLedger(t))

	sess, err := svc.Login(context.Background(), "Asha")
	require.NoError(t, err)
	assert.True(t, sess.Cashier.AvatarPending)

	assert.Eventually(t, func() bool {
		c, err := svc.Current(context.Background())
		return err == nil && !c.AvatarPending && c.AvatarURL != ""
	}, time.Second, 10*time.Millisecond)
}

func TestLogin_AvatarFailureIsNotFatal(t *testing.T) {
	avatars := &fakeAvatars{err: errors.New("quota")}
	svc := newService(avatars, newLedger(t))

	_, err := svc.Login(context.Background(), "Asha")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		c, err := svc.Current(context.Background())
		return err == nil && !c.AvatarPending
	}, time.Second, 10*time.Millisecond)
	c, _ := svc.Current(context.Background())
	assert.Empty(t, c.AvatarURL)
}

func TestLogout_ClearsBill(t *testing.T) {
	ctx := context.Background()
	bill := newLedger(t)
	_, err := bill.Add(ctx, 1)
	require.NoError(t, err)
	svc := newService(nil, bill)

	assert.ErrorIs(t, svc.Logout(ctx), auth.ErrNotLoggedIn)
	assert.Len(t, bill.Current(ctx).Items, 1)

	sess, err := svc.Login(ctx, "Asha")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx))

	assert.True(t, bill.Current(ctx).IsEmpty())
	_, err = svc.Verify(sess.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestLogout_DropsLateAvatar(t *testing.T) {
	ctx := context.Background()
	avatars := &fakeAvatars{block: make(chan struct{})}
	svc := newService(avatars, newLedger(t))

	_, err := svc.Login(ctx, "Asha")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx))
	close(avatars.block)

	assert.Eventually(t, func() bool {
		avatars.mu.Lock()
		defer avatars.mu.Unlock()
		return len(avatars.calls) == 1
	}, time.Second, 10*time.Millisecond)
	_, err = svc.Current(ctx)
	assert.ErrorIs(t, err, auth.ErrNotLoggedIn)
}

func TestClose_CancelsAndWaitsForAvatar(t *testing.T) {
	started := make(chan struct{})
	var got error
	avatars := avatarFunc(func(ctx context.Context, name string) (string, error) {
		close(started)
		<-ctx.Done()
		got = ctx.Err()
		return "", got
	})
	svc := newService(avatars, newLedger(t))

	_, err := svc.Login(context.Background(), "Asha")
	require.NoError(t, err)
	<-started
	svc.Close()

	assert.ErrorIs(t, got, context.Canceled)
}

func TestHandler_LoginAndGuardedRoutes(t *testing.T) {
	svc := newService(nil, newLedger(t))
	r := chi.NewRouter()
	auth.NewHandler(svc).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"name":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"name":"Asha"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var sess auth.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Asha"`)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireCashier_StoresCashierInContext(t *testing.T) {
	svc := newService(nil, newLedger(t))
	sess, err := svc.Login(context.Background(), "Asha")
	require.NoError(t, err)

	var got auth.Cashier
	h := auth.RequireCashier(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CashierFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "Asha", got.Name)
}
