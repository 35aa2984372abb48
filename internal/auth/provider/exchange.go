package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Session is the transient result of one identity exchange. It lives for a
// single callback invocation and is never persisted as such.
type Session struct {
	AccessToken  string
	RefreshToken string
	Subject      string // provider identity id
	Email        string
	Provider     string
	ExpiresAt    time.Time
}

// ExchangeError reports a failed code-for-session exchange. Timeouts and
// provider rejections are deliberately indistinguishable to callers: both
// mean "the exchange did not happen" and neither is retried here.
type ExchangeError struct {
	Provider string
	Err      error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("oauth exchange (%s): %v", e.Provider, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// userInfo covers both the Google userinfo and Microsoft Graph /me shapes.
type userInfo struct {
	ID                string `json:"id"`
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

func (u userInfo) subject() string {
	if u.ID != "" {
		return u.ID
	}
	return u.Sub
}

func (u userInfo) email() string {
	switch {
	case u.Email != "":
		return u.Email
	case u.Mail != "":
		return u.Mail
	default:
		return u.UserPrincipalName
	}
}

// Exchange trades an authorization code for a provider session: token
// exchange first, then a userinfo fetch with the new token. Any failure,
// timeout included, comes back as *ExchangeError.
func (c *Client) Exchange(ctx context.Context, providerName, redirectURL, code string) (*Session, error) {
	ep, ok := c.endpoints[providerName]
	if !ok {
		return nil, &ExchangeError{Provider: providerName, Err: fmt.Errorf("unknown provider")}
	}

	conf := *ep.Config
	conf.RedirectURL = redirectURL

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, &ExchangeError{Provider: providerName, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.UserInfoURL, nil)
	if err != nil {
		return nil, &ExchangeError{Provider: providerName, Err: err}
	}
	resp, err := conf.Client(ctx, token).Do(req)
	if err != nil {
		return nil, &ExchangeError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ExchangeError{
			Provider: providerName,
			Err:      fmt.Errorf("userinfo returned %d", resp.StatusCode),
		}
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &ExchangeError{Provider: providerName, Err: err}
	}
	if info.email() == "" {
		return nil, &ExchangeError{Provider: providerName, Err: fmt.Errorf("userinfo missing email")}
	}

	return &Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Subject:      info.subject(),
		Email:        info.email(),
		Provider:     providerName,
		ExpiresAt:    token.Expiry,
	}, nil
}
