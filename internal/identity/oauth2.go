// Package identity provides credential sources backed by an identity
// provider: an OAuth2 client-credentials session, a rotating token file,
// and a reader for the identity claims carried by a token.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/kfreiman/careerlink/internal/orchestrate"
)

// OAuth2Config holds configuration for the client-credentials session
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// HTTPClient is used for token requests when set.
	HTTPClient *http.Client
}

// OAuth2Source yields credentials from an OAuth2 client-credentials grant.
// Forced calls always hit the token endpoint; other calls reuse the last
// token until it expires.
type OAuth2Source struct {
	config  *clientcredentials.Config
	baseCtx context.Context
	logger  *slog.Logger

	mu     sync.Mutex
	cached oauth2.TokenSource
}

// NewOAuth2Source creates a source for config.
func NewOAuth2Source(config OAuth2Config) *OAuth2Source {
	baseCtx := context.Background()
	if config.HTTPClient != nil {
		baseCtx = context.WithValue(baseCtx, oauth2.HTTPClient, config.HTTPClient)
	}

	cc := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     config.TokenURL,
		Scopes:       config.Scopes,
	}

	return &OAuth2Source{
		config:  cc,
		baseCtx: baseCtx,
		logger:  slog.Default(),
		cached:  cc.TokenSource(baseCtx),
	}
}

// WithLogger sets a custom logger for the source
func (s *OAuth2Source) WithLogger(logger *slog.Logger) *OAuth2Source {
	s.logger = logger
	return s
}

// Credential returns the provider's id_token when it issues one, otherwise
// the access token.
func (s *OAuth2Source) Credential(ctx context.Context, opts orchestrate.CredentialOptions) (string, error) {
	var (
		tok *oauth2.Token
		err error
	)

	if opts.ForceRefresh {
		tok, err = s.config.Token(s.requestContext(ctx))
		if err != nil {
			return "", fmt.Errorf("fetch token: %w", err)
		}
		s.mu.Lock()
		s.cached = oauth2.ReuseTokenSource(tok, s.config.TokenSource(s.baseCtx))
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "fetched fresh token", "expiry", tok.Expiry)
	} else {
		s.mu.Lock()
		cached := s.cached
		s.mu.Unlock()

		tok, err = tokenWithContext(ctx, cached)
		if err != nil {
			return "", fmt.Errorf("fetch token: %w", err)
		}
	}

	return credentialFrom(tok)
}

// tokenWithContext calls ts.Token, giving up when ctx ends first. A refresh
// still in flight finishes in the background and is reused by the next call.
func tokenWithContext(ctx context.Context, ts oauth2.TokenSource) (*oauth2.Token, error) {
	type result struct {
		tok *oauth2.Token
		err error
	}

	ch := make(chan result, 1)
	go func() {
		tok, err := ts.Token()
		ch <- result{tok: tok, err: err}
	}()

	select {
	case r := <-ch:
		return r.tok, r.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// requestContext carries the configured HTTP client into a per-call ctx.
func (s *OAuth2Source) requestContext(ctx context.Context) context.Context {
	if client, ok := s.baseCtx.Value(oauth2.HTTPClient).(*http.Client); ok {
		return context.WithValue(ctx, oauth2.HTTPClient, client)
	}
	return ctx
}

func credentialFrom(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", orchestrate.ErrEmptyCredential
	}
	if id, ok := tok.Extra("id_token").(string); ok && strings.TrimSpace(id) != "" {
		return id, nil
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return "", orchestrate.ErrEmptyCredential
	}
	return tok.AccessToken, nil
}
