// Package oauth performs OAuth2 client-credentials exchanges against bank token endpoints.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/httpclient"
)

// DefaultTokenLifetime is assumed when neither expires_in nor a JWT exp claim is available
const DefaultTokenLifetime = time.Hour

// Request describes one client-credentials exchange
type Request struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	// Params are extra form fields sent with the request
	Params map[string]string
}

// Token is an issued access token with a resolved absolute expiry
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// Exchanger obtains tokens through the shared HTTP session
type Exchanger struct {
	session *httpclient.Session
	now     func() time.Time
}

// NewExchanger creates an exchanger using the session for all token requests
func NewExchanger(session *httpclient.Session) *Exchanger {
	return &Exchanger{session: session, now: time.Now}
}

// Exchange posts grant_type=client_credentials with the client id, secret and scope
// as form parameters. Failures carry a shared ingestion kind and the HTTP status.
func (e *Exchanger) Exchange(ctx context.Context, req Request) (*Token, error) {
	if req.TokenURL == "" || req.ClientID == "" || req.ClientSecret == "" {
		return nil, shared.NewIngestError(shared.ErrConfig, "token exchange", errors.New("token url, client id and client secret are required"))
	}

	params := url.Values{}
	for k, v := range req.Params {
		params.Set(k, v)
	}
	cfg := clientcredentials.Config{
		ClientID:       req.ClientID,
		ClientSecret:   req.ClientSecret,
		TokenURL:       req.TokenURL,
		Scopes:         strings.Fields(req.Scope),
		EndpointParams: params,
		AuthStyle:      oauth2.AuthStyleInParams,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.session.Client())
	issuedAt := e.now()
	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, classify(err)
	}

	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    resolveExpiry(tok, issuedAt),
	}, nil
}

// resolveExpiry prefers expires_in, then the JWT exp claim, then the default lifetime
func resolveExpiry(tok *oauth2.Token, issuedAt time.Time) time.Time {
	if secs := expiresIn(tok); secs > 0 {
		return issuedAt.Add(time.Duration(secs) * time.Second)
	}
	if exp, ok := JWTExpiry(tok.AccessToken); ok {
		return exp
	}
	return issuedAt.Add(DefaultTokenLifetime)
}

func expiresIn(tok *oauth2.Token) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case string:
		var n int64
		if _, err := fmt.Sscan(v, &n); err == nil {
			return n
		}
	}
	return 0
}

func classify(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		detail := strings.TrimSpace(strings.Join(nonEmpty(re.ErrorCode, re.ErrorDescription), ": "))
		if detail == "" {
			detail = httpclient.ExtractErrorMessage(re.Body)
		}
		kind := shared.ClassifyHTTPStatus(status)
		if kind == nil {
			kind = shared.ErrData
		}
		ie := shared.NewIngestError(kind, "token exchange", &httpclient.HTTPStatusError{
			StatusCode: status,
			Message:    detail,
			Body:       string(re.Body),
		})
		ie.StatusCode = status
		return ie
	}
	if shared.KindOf(err) != nil {
		return err
	}
	if strings.Contains(err.Error(), "missing access_token") {
		return shared.NewIngestError(shared.ErrData, "token exchange", err)
	}
	return shared.NewIngestError(shared.ErrNetwork, "token exchange", err)
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
