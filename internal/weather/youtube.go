package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const ytSearchDefault = "https://www.googleapis.com/youtube/v3/search"

// YouTubeClient searches YouTube for videos matching a free-text query.
// Lookups are single-shot: video search is best-effort and quota-priced,
// so there is no retry layer here.
type YouTubeClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewYouTubeClient constructs a YouTubeClient with the given API key.
func NewYouTubeClient(apiKey string) *YouTubeClient {
	return &YouTubeClient{apiKey: apiKey, baseURL: ytSearchDefault, client: newHTTPClient()}
}

// NewYouTubeClientWithURL constructs a YouTubeClient pointing at a custom
// base URL (for tests).
func NewYouTubeClientWithURL(baseURL, apiKey string) *YouTubeClient {
	return &YouTubeClient{apiKey: apiKey, baseURL: baseURL, client: newHTTPClient()}
}

type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
			Thumbnails   struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// Search returns up to limit videos matching query.
func (c *YouTubeClient) Search(ctx context.Context, query string, limit int) ([]Video, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("key", c.apiKey)
	endpoint := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &CollaboratorError{Provider: "youtube", Err: fmt.Errorf("creating request: %w", err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &CollaboratorError{Provider: "youtube", Err: fmt.Errorf("search %q: %w", query, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &CollaboratorError{Provider: "youtube", Err: fmt.Errorf("search %q returned status %d", query, resp.StatusCode)}
	}

	var raw ytSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &CollaboratorError{Provider: "youtube", Err: fmt.Errorf("decoding search %q: %w", query, err)}
	}

	videos := make([]Video, 0, len(raw.Items))
	for _, item := range raw.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, Video{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			Channel:     item.Snippet.ChannelTitle,
			PublishedAt: item.Snippet.PublishedAt,
			Thumbnail:   item.Snippet.Thumbnails.Default.URL,
		})
	}

	return videos, nil
}
