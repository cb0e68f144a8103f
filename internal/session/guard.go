package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ikkim/udonggeum-cartsync/pkg/logger"
)

// TokenStore holds the current access token. Safe for concurrent use.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: token}
}

// Token implements remote.TokenSource.
func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *TokenStore) Clear() {
	s.Set("")
}

// Prompter sends the user to sign in. It is a navigation side effect only.
type Prompter interface {
	PromptSignIn(ctx context.Context, route string)
}

// Guard answers whether the user is signed in.
//
// Tokens are issued by the storefront backend; the client has no signing key,
// so the JWT is parsed unverified and only its exp and sub claims are read.
// Tokens that are not JWTs count as active while present.
type Guard struct {
	tokens   *TokenStore
	prompter Prompter
	route    string
	now      func() time.Time
}

func NewGuard(tokens *TokenStore, prompter Prompter, signInRoute string) *Guard {
	if prompter == nil {
		prompter = NewLogPrompter()
	}
	return &Guard{
		tokens:   tokens,
		prompter: prompter,
		route:    signInRoute,
		now:      time.Now,
	}
}

func (g *Guard) HasActiveSession(_ context.Context) bool {
	return g.Accepts(g.tokens.Token())
}

// Accepts reports whether token would start an active session, without storing it.
func (g *Guard) Accepts(token string) bool {
	if token == "" {
		return false
	}

	claims, err := parseClaims(token)
	if err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return g.now().Before(exp.Time)
}

// RequireSession prompts for sign-in when there is no active session.
func (g *Guard) RequireSession(ctx context.Context) bool {
	if g.HasActiveSession(ctx) {
		return true
	}

	logger.Info("Sign-in required for cart action", logger.Fields{
		"route": g.route,
	})
	g.prompter.PromptSignIn(ctx, g.route)
	return false
}

// Subject returns the token's sub claim, or "" when there is none.
func (g *Guard) Subject() string {
	token := g.tokens.Token()
	if token == "" {
		return ""
	}
	claims, err := parseClaims(token)
	if err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

var errNotJWT = errors.New("token is not a jwt")

func parseClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errNotJWT
	}
	return claims, nil
}

// LogPrompter records sign-in prompts for presentation code to pick up.
type LogPrompter struct {
	mu    sync.Mutex
	count int
	route string
}

func NewLogPrompter() *LogPrompter {
	return &LogPrompter{}
}

func (p *LogPrompter) PromptSignIn(_ context.Context, route string) {
	p.mu.Lock()
	p.count++
	p.route = route
	p.mu.Unlock()

	logger.Debug("Sign-in prompt issued", logger.Fields{
		"route": route,
	})
}

// Prompts returns how many prompts were issued and the last route.
func (p *LogPrompter) Prompts() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count, p.route
}
