// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package auth

import (
	"fmt"
	"sync"

	"github.com/tomtom215/mirrortracker/internal/config"
	"github.com/tomtom215/mirrortracker/internal/logging"
)

// AuthMode selects the identity provider.
type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeStatic AuthMode = "static"
	AuthModeJWT    AuthMode = "jwt"
)

// Provider reports the signed-in user.
type Provider interface {
	// CurrentUserID returns the user id and true when someone is signed in.
	CurrentUserID() (string, bool)
	// SignOut forgets the identity until the process restarts.
	SignOut()
	// OnChange sets a hook run after the identity changes through this
	// provider. It replaces any previous hook.
	OnChange(fn func())
}

// changeHook holds a provider's OnChange callback.
type changeHook struct {
	mu sync.Mutex
	fn func()
}

func (h *changeHook) OnChange(fn func()) {
	h.mu.Lock()
	h.fn = fn
	h.mu.Unlock()
}

// fire runs the hook. Callers must not hold their own lock.
func (h *changeHook) fire() {
	h.mu.Lock()
	fn := h.fn
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// NewProvider builds the provider selected by cfg.Mode.
func NewProvider(cfg *config.AuthConfig) (Provider, error) {
	switch AuthMode(cfg.Mode) {
	case AuthModeNone, "":
		return NewStaticProvider(""), nil
	case AuthModeStatic:
		return NewStaticProvider(cfg.UserID), nil
	case AuthModeJWT:
		m, err := NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			return nil, err
		}
		return NewTokenProvider(m, cfg.Token), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// StaticProvider always reports the same user until SignOut.
type StaticProvider struct {
	changeHook

	mu  sync.Mutex
	uid string
}

// NewStaticProvider returns a provider for uid. An empty uid means nobody is
// signed in.
func NewStaticProvider(uid string) *StaticProvider {
	return &StaticProvider{uid: uid}
}

func (p *StaticProvider) CurrentUserID() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uid, p.uid != ""
}

func (p *StaticProvider) SignOut() {
	p.mu.Lock()
	changed := p.uid != ""
	p.uid = ""
	p.mu.Unlock()
	if changed {
		p.fire()
	}
}

// TokenProvider identifies the user from a JWT. The token is validated on
// every call, so an expired token signs the user out.
type TokenProvider struct {
	changeHook

	jwt *JWTManager

	mu    sync.Mutex
	token string
}

// NewTokenProvider returns a provider for token.
func NewTokenProvider(m *JWTManager, token string) *TokenProvider {
	return &TokenProvider{jwt: m, token: token}
}

func (p *TokenProvider) CurrentUserID() (string, bool) {
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()
	if token == "" {
		return "", false
	}

	claims, err := p.jwt.ValidateToken(token)
	if err != nil {
		logging.Debug().Err(err).Msg("Identity token rejected")
		return "", false
	}
	return claims.Subject, true
}

// SetToken replaces the token, e.g. after a refresh or a sign-in.
func (p *TokenProvider) SetToken(token string) {
	p.mu.Lock()
	changed := p.token != token
	p.token = token
	p.mu.Unlock()
	if changed {
		p.fire()
	}
}

func (p *TokenProvider) SignOut() { p.SetToken("") }
