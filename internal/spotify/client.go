// Package spotify wraps the Spotify Web API calls the pipeline needs:
// track search, recently-played polling, and playback queueing. Token
// refresh lives here too, so callers only ever observe token-or-empty.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	apiBase      = "https://api.spotify.com/v1"
	requestLimit = 10 * time.Second
)

// Track is a flattened catalog search result carrying everything the
// request ledger stores for a match.
type Track struct {
	ID            string
	Title         string
	Artist        string
	AlbumName     string
	AlbumImageURL string // empty when the album has no artwork
	DurationMs    int
	URI           string
}

// PlayedItem is one entry of the recently-played feed.
type PlayedItem struct {
	TrackID  string
	Title    string
	PlayedAt time.Time
}

// RecentlyPlayed is a page of played tracks plus the cursor for the next
// poll (unix milliseconds; zero when Spotify returned none).
type RecentlyPlayed struct {
	Items       []PlayedItem
	CursorAfter int64
}

// Client is a thin Spotify Web API client. All methods fail fast via the
// HTTP client timeout.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewClient creates a Spotify API client.
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestLimit},
		baseURL:    apiBase,
		logger:     logger,
	}
}

type trackPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URI        string `json:"uri"`
	DurationMs int    `json:"duration_ms"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
}

func (p *trackPayload) toTrack() *Track {
	artist := ""
	for i, a := range p.Artists {
		if i > 0 {
			artist += ", "
		}
		artist += a.Name
	}
	imageURL := ""
	if len(p.Album.Images) > 0 {
		imageURL = p.Album.Images[0].URL
	}
	return &Track{
		ID:            p.ID,
		Title:         p.Name,
		Artist:        artist,
		AlbumName:     p.Album.Name,
		AlbumImageURL: imageURL,
		DurationMs:    p.DurationMs,
		URI:           p.URI,
	}
}

// SearchTrack returns the best track match for a query, or nil when the
// catalog has no result.
func (c *Client) SearchTrack(ctx context.Context, token, query string) (*Track, error) {
	u := fmt.Sprintf("%s/search?q=%s&type=track&limit=1", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spotify search: status %d", resp.StatusCode)
	}

	var body struct {
		Tracks struct {
			Items []trackPayload `json:"items"`
		} `json:"tracks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("spotify search decode: %w", err)
	}
	if len(body.Tracks.Items) == 0 {
		return nil, nil
	}
	return body.Tracks.Items[0].toTrack(), nil
}

// RecentlyPlayed returns tracks played after the given unix-millisecond
// cursor. Returns nil (no error) when the feature is unavailable for the
// account, e.g. 403 on non-Premium accounts; that case is logged here so
// callers can skip silently.
func (c *Client) RecentlyPlayed(ctx context.Context, token string, afterMs int64) (*RecentlyPlayed, error) {
	u := c.baseURL + "/me/player/recently-played?limit=50"
	if afterMs > 0 {
		u += "&after=" + strconv.FormatInt(afterMs, 10)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify recently-played: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		c.logger.Warn("spotify recently-played unavailable for this account")
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spotify recently-played: status %d", resp.StatusCode)
	}

	var body struct {
		Items []struct {
			Track    trackPayload `json:"track"`
			PlayedAt time.Time    `json:"played_at"`
		} `json:"items"`
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("spotify recently-played decode: %w", err)
	}

	out := &RecentlyPlayed{}
	for _, it := range body.Items {
		out.Items = append(out.Items, PlayedItem{
			TrackID:  it.Track.ID,
			Title:    it.Track.Name,
			PlayedAt: it.PlayedAt,
		})
	}
	if body.Cursors.After != "" {
		if after, err := strconv.ParseInt(body.Cursors.After, 10, 64); err == nil {
			out.CursorAfter = after
		}
	}
	return out, nil
}

// AddToQueue pushes a track URI onto the user's active playback queue.
func (c *Client) AddToQueue(ctx context.Context, token, trackURI string) error {
	u := fmt.Sprintf("%s/me/player/queue?uri=%s", c.baseURL, url.QueryEscape(trackURI))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spotify add to queue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("spotify add to queue: status %d", resp.StatusCode)
	}
	return nil
}
