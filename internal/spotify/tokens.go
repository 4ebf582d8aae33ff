package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livejam/backend/internal/models"
)

const tokenURL = "https://accounts.spotify.com/api/token"

// Accounts is the persistence surface the token source needs.
type Accounts interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.SpotifyAccount, error)
	UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, expiresAt int64) error
}

// TokenSource resolves a valid Spotify access token for a user, refreshing
// an expired one transparently. Callers observe token-or-empty: an empty
// token with nil error means the user has no usable Spotify link.
type TokenSource struct {
	accounts     Accounts
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	logger       *zap.Logger
	now          func() time.Time
}

// NewTokenSource creates a token source backed by the accounts table.
func NewTokenSource(accounts Accounts, clientID, clientSecret string, logger *zap.Logger) *TokenSource {
	return &TokenSource{
		accounts:     accounts,
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		httpClient:   &http.Client{Timeout: requestLimit},
		logger:       logger,
		now:          time.Now,
	}
}

// AccessToken returns a fresh access token for the user, or "" when the
// account is not linked or the refresh failed. Errors are transport-level
// failures; both cases mean "credential unavailable" to the pipeline.
func (ts *TokenSource) AccessToken(ctx context.Context, userID uuid.UUID) (string, error) {
	acct, err := ts.accounts.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load spotify account: %w", err)
	}
	if acct == nil || acct.AccessToken == "" {
		return "", nil
	}

	if acct.ExpiresAt > 0 && time.Unix(acct.ExpiresAt, 0).Before(ts.now()) {
		if acct.RefreshToken == "" {
			return "", nil
		}
		return ts.refresh(ctx, userID, acct.RefreshToken)
	}
	return acct.AccessToken, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (ts *TokenSource) refresh(ctx context.Context, userID uuid.UUID, refreshToken string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(ts.clientID + ":" + ts.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("spotify token refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ts.logger.Warn("spotify token refresh rejected",
			zap.String("user_id", userID.String()),
			zap.Int("status", resp.StatusCode))
		return "", nil
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("spotify token refresh decode: %w", err)
	}

	expiresAt := ts.now().Unix() + body.ExpiresIn
	if err := ts.accounts.UpdateTokens(ctx, userID, body.AccessToken, body.RefreshToken, expiresAt); err != nil {
		ts.logger.Error("persist refreshed spotify token", zap.Error(err), zap.String("user_id", userID.String()))
	}
	return body.AccessToken, nil
}
