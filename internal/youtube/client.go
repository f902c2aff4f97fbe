package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/stream-queue-system/pkg/models"
)

const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

var ErrVideoNotFound = errors.New("youtube: video not found")

// Client looks up video metadata through the YouTube Data API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string               `json:"title"`
			ChannelTitle string               `json:"channelTitle"`
			Thumbnails   map[string]thumbnail `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Resolve fetches the title and thumbnails of a video. Thumbnails are
// ordered by width, narrowest first.
func (c *Client) Resolve(ctx context.Context, videoID string) (*models.Metadata, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", videoID)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube: videos request failed with status %d", resp.StatusCode)
	}

	var body videosResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("youtube: failed to decode response: %w", err)
	}
	if len(body.Items) == 0 {
		return nil, ErrVideoNotFound
	}

	snippet := body.Items[0].Snippet
	meta := &models.Metadata{
		Title:      snippet.Title,
		Thumbnails: make([]models.Thumbnail, 0, len(snippet.Thumbnails)),
	}
	for _, t := range snippet.Thumbnails {
		if t.URL == "" {
			continue
		}
		meta.Thumbnails = append(meta.Thumbnails, models.Thumbnail{URL: t.URL, Width: t.Width, Height: t.Height})
	}
	sort.Slice(meta.Thumbnails, func(i, j int) bool {
		if meta.Thumbnails[i].Width != meta.Thumbnails[j].Width {
			return meta.Thumbnails[i].Width < meta.Thumbnails[j].Width
		}
		return meta.Thumbnails[i].URL < meta.Thumbnails[j].URL
	})

	return meta, nil
}
