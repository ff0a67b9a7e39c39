package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"chat/config"
	"chat/infrastructure"
	"chat/internal/auth/accounts"
)

// Profile is what a provider tells us about the signed-in person.
type Profile struct {
	Subject     string
	Email       string
	DisplayName string
	PhotoURL    string
}

// Identities runs the provider side of the redirect flow.
type Identities interface {
	AuthCodeURL(provider, state string) (string, error)
	Exchange(ctx context.Context, provider, code string) (*Profile, error)
}

type oauthProvider struct {
	config  *oauth2.Config
	profile func(ctx context.Context, client *http.Client) (*Profile, error)
}

type OAuthProviders struct {
	providers map[string]*oauthProvider
}

func NewOAuthProviders(cfg *config.Config) *OAuthProviders {
	p := &OAuthProviders{providers: make(map[string]*oauthProvider)}
	if cfg.GoogleClientID != "" {
		p.providers[accounts.ProviderGoogle] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     endpoints.Google,
				RedirectURL:  cfg.OAuthRedirectURL,
				Scopes:       []string{"openid", "email", "profile"},
			},
			profile: googleProfile,
		}
	}
	if cfg.GithubClientID != "" {
		p.providers[accounts.ProviderGithub] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.GithubClientID,
				ClientSecret: cfg.GithubClientSecret,
				Endpoint:     endpoints.GitHub,
				RedirectURL:  cfg.OAuthRedirectURL,
				Scopes:       []string{"read:user", "user:email"},
			},
			profile: githubProfile,
		}
	}
	return p
}

func (p *OAuthProviders) provider(name string) (*oauthProvider, error) {
	op, ok := p.providers[name]
	if !ok {
		return nil, infrastructure.Validation("unsupported sign-in provider %q", name)
	}
	return op, nil
}

func (p *OAuthProviders) AuthCodeURL(provider, state string) (string, error) {
	op, err := p.provider(provider)
	if err != nil {
		return "", err
	}
	return op.config.AuthCodeURL(state), nil
}

func (p *OAuthProviders) Exchange(ctx context.Context, provider, code string) (*Profile, error) {
	op, err := p.provider(provider)
	if err != nil {
		return nil, err
	}
	token, err := op.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", infrastructure.ErrAuth, err)
	}
	profile, err := op.profile(ctx, op.config.Client(ctx, token))
	if err != nil {
		return nil, infrastructure.Unavailable("fetch "+provider+" profile", err)
	}
	return profile, nil
}

func fetchJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func googleProfile(ctx context.Context, client *http.Client) (*Profile, error) {
	var info struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := fetchJSON(ctx, client, "https://openidconnect.googleapis.com/v1/userinfo", &info); err != nil {
		return nil, err
	}
	return &Profile{Subject: info.Sub, Email: info.Email, DisplayName: info.Name, PhotoURL: info.Picture}, nil
}

func githubProfile(ctx context.Context, client *http.Client) (*Profile, error) {
	var info struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := fetchJSON(ctx, client, "https://api.github.com/user", &info); err != nil {
		return nil, err
	}

	email := info.Email
	if email == "" {
		// Private emails are only listed on the emails endpoint.
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := fetchJSON(ctx, client, "https://api.github.com/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		email = info.Login + "@users.noreply.github.com"
	}

	return &Profile{
		Subject:     strconv.FormatInt(info.ID, 10),
		Email:       email,
		DisplayName: info.Name,
		PhotoURL:    info.AvatarURL,
	}, nil
}
