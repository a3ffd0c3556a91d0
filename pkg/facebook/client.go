// Package facebook is a minimal Facebook Graph API client covering the
// profile and friends reads the service needs.
package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

var (
	// ErrTokenRejected is returned when the Graph API refuses the access token
	ErrTokenRejected = errors.New("facebook rejected the access token")

	// ErrGraphUnavailable is returned on non-auth Graph API failures
	ErrGraphUnavailable = errors.New("facebook graph api unavailable")
)

// Profile is the subset of the Graph user profile the service consumes
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Picture   struct {
		Data struct {
			URL          string `json:"url"`
			IsSilhouette bool   `json:"is_silhouette"`
		} `json:"data"`
	} `json:"picture"`
}

// Friend is one entry of the caller's friend list
type Friend struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Paging carries the Graph cursors for the friends list
type Paging struct {
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// FriendsPage is one page of the caller's friends using the app
type FriendsPage struct {
	Friends []Friend
	Paging  Paging
}

// Client talks to the Graph API. BaseURL is configurable so tests can point
// it at a local fake.
type Client struct {
	baseURL string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewClient creates a Graph API client
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		logger:  logger,
	}
}

// httpClient builds a client that attaches the access token to every request
func (c *Client) httpClient(ctx context.Context, accessToken string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = c.timeout
	return client
}

func (c *Client) get(ctx context.Context, accessToken, path string, query url.Values, dest interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building graph request: %w", err)
	}

	resp, err := c.httpClient(ctx, accessToken).Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGraphUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		// the Graph API reports bad tokens as 400 with an OAuthException body
		c.logger.WithField("status", resp.StatusCode).Debug("graph rejected token")
		return ErrTokenRejected
	default:
		return fmt.Errorf("%w: status %d", ErrGraphUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding graph response: %w", err)
	}
	return nil
}

// Profile fetches the token owner's profile
func (c *Client) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	query := url.Values{}
	query.Set("fields", "id,email,first_name,last_name,picture.type(large)")

	var profile Profile
	if err := c.get(ctx, accessToken, "/me", query, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Friends fetches one page of the token owner's friends who use the app.
// after is the Graph cursor for pagination; limit of 0 uses the Graph default.
func (c *Client) Friends(ctx context.Context, accessToken, after string, limit int) (*FriendsPage, error) {
	query := url.Values{}
	if after != "" {
		query.Set("after", after)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var body struct {
		Data   []Friend `json:"data"`
		Paging struct {
			Next     string `json:"next"`
			Previous string `json:"previous"`
		} `json:"paging"`
	}
	if err := c.get(ctx, accessToken, "/me/friends", query, &body); err != nil {
		return nil, err
	}

	return &FriendsPage{
		Friends: body.Data,
		Paging: Paging{
			Next:     body.Paging.Next,
			Previous: body.Paging.Previous,
		},
	}, nil
}
