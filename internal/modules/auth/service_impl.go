package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configure the session service.
type Options struct {
	Secret        []byte
	TTL           time.Duration
	AvatarTimeout time.Duration
	Now           func() time.Time
}

type session struct {
	id      string
	cashier Cashier
}

type service struct {
	mu      sync.Mutex
	opts    Options
	avatars AvatarGenerator
	bill    BillClearer
	logger  *zap.Logger
	current *session

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a new cashier session service.
func NewService(opts Options, avatars AvatarGenerator, bill BillClearer, logger *zap.Logger) Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	if opts.AvatarTimeout <= 0 {
		opts.AvatarTimeout = time.Minute
	}
	root, cancel := context.WithCancel(context.Background())
	return &service{opts: opts, avatars: avatars, bill: bill, logger: logger, root: root, cancel: cancel}
}

// Close cancels avatar generation in flight and waits for it to return.
func (s *service) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *service) Login(ctx context.Context, name string) (Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, ErrNameRequired
	}

	now := s.opts.Now()
	expirationTime := now.Add(s.opts.TTL)
	id := uuid.NewString()
	claims := &jwt.StandardClaims{
		Id:        id,
		Subject:   name,
		IssuedAt:  now.Unix(),
		ExpiresAt: expirationTime.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.opts.Secret)
	if err != nil {
		return Session{}, fmt.Errorf("signing session token: %w", err)
	}

	cashier := Cashier{Name: name, AvatarPending: s.avatars != nil, LoggedInAt: now}
	s.mu.Lock()
	s.current = &session{id: id, cashier: cashier}
	s.mu.Unlock()

	s.logger.Info("cashier logged in", zap.String("cashier", name))
	if s.avatars != nil {
		s.startAvatar(id, name)
	}
	return Session{Token: tokenString, ExpiresAt: expirationTime, Cashier: cashier}, nil
}

// startAvatar generates the avatar in the background. The result is dropped if the
// session it was started for has ended in the meantime.
func (s *service) startAvatar(sessionID, name string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.root, s.opts.AvatarTimeout)
		defer cancel()

		url, err := s.avatars.Avatar(ctx, name)
		if err != nil {
			s.logger.Warn("avatar generation failed", zap.String("cashier", name), zap.Error(err))
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current == nil || s.current.id != sessionID {
			return
		}
		s.current.cashier.AvatarPending = false
		if err == nil {
			s.current.cashier.AvatarURL = url
		}
	}()
}

func (s *service) Logout(ctx context.Context) error {
	s.mu.Lock()
	cur := s.current
	s.current = nil
	s.mu.Unlock()

	if cur == nil {
		return ErrNotLoggedIn
	}
	s.bill.Clear(ctx)
	s.logger.Info("cashier logged out", zap.String("cashier", cur.cashier.Name))
	return nil
}

func (s *service) Current(ctx context.Context) (Cashier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Cashier{}, ErrNotLoggedIn
	}
	return s.current.cashier, nil
}

func (s *service) RegenerateAvatar(ctx context.Context) (Cashier, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return Cashier{}, ErrNotLoggedIn
	}
	if s.avatars == nil || s.current.cashier.AvatarPending {
		c := s.current.cashier
		s.mu.Unlock()
		return c, nil
	}
	s.current.cashier.AvatarPending = true
	cur := *s.current
	s.mu.Unlock()

	s.startAvatar(cur.id, cur.cashier.Name)
	return cur.cashier, nil
}

func (s *service) Verify(tokenString string) (Cashier, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.opts.Secret, nil
	})
	if err != nil || !token.Valid {
		return Cashier{}, ErrInvalidToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.id != claims.Id {
		return Cashier{}, ErrInvalidToken
	}
	return s.current.cashier, nil
}
