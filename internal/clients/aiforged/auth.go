package aiforged

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// headerTransport stamps the client name and, in API key mode, the key
// on every outgoing request.
type headerTransport struct {
	apiKey  string
	appName string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if t.apiKey != "" {
		r.Header.Set(headerAPIKey, t.apiKey)
	}
	if t.appName != "" {
		r.Header.Set(headerClientName, t.appName)
	}
	return t.base.RoundTrip(r)
}

// newAuthTransport picks API key or OAuth2 password session auth.
func newAuthTransport(cfg Config, baseURL string, timeout time.Duration, log zerolog.Logger) http.RoundTripper {
	headers := &headerTransport{
		apiKey:  cfg.APIKey,
		appName: cfg.AppName,
		base:    http.DefaultTransport,
	}
	if cfg.APIKey != "" {
		return headers
	}

	return &oauth2.Transport{
		Source: &sessionTokenSource{
			conf: &oauth2.Config{
				ClientID: cfg.ClientID,
				Endpoint: oauth2.Endpoint{
					TokenURL:  baseURL + cfg.TokenPath,
					AuthStyle: oauth2.AuthStyleInParams,
				},
			},
			username: cfg.Username,
			password: cfg.Password,
			// Token calls use their own client so they get the timeout and
			// the client-name header but never recurse into this transport.
			ctx: context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
				Timeout:   timeout,
				Transport: &headerTransport{appName: cfg.AppName, base: http.DefaultTransport},
			}),
			log: log,
		},
		Base: headers,
	}
}

// sessionTokenSource logs in with the resource-owner password grant and then
// lets the oauth2 token source refresh. When a refresh fails it logs in again.
type sessionTokenSource struct {
	conf     *oauth2.Config
	username string
	password string
	ctx      context.Context
	log      zerolog.Logger

	mu  sync.Mutex
	src oauth2.TokenSource
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src != nil {
		tok, err := s.src.Token()
		if err == nil {
			return tok, nil
		}
		s.log.Warn().Err(err).Msg("Session refresh failed, logging in again")
		s.src = nil
	}

	tok, err := s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	s.log.Debug().Time("expiry", tok.Expiry).Msg("Session established")

	s.src = s.conf.TokenSource(s.ctx, tok)
	return tok, nil
}
