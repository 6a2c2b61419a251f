// api.go: HTTP client for the Frigate NVR REST API, used to fetch snapshot
// and frame imagery for evidence capture.
package frigate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/DanceAddiction/DogShitAEye/internal/conf"
	"github.com/DanceAddiction/DogShitAEye/internal/errors"
)

const (
	defaultAPITimeout   = 10 * time.Second
	defaultRetries      = 3
	defaultRetryBackoff = 500 * time.Millisecond

	// Latest-frame responses are cached briefly so a burst of captures on
	// one camera does not hammer Frigate.
	frameCacheTTL     = 2 * time.Second
	frameCacheCleanup = 30 * time.Second
)

// APIClient fetches imagery from Frigate's HTTP API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	cache      *gocache.Cache
	retries    int
	backoff    time.Duration
}

// NewAPIClient creates a client against the Frigate host in settings.
func NewAPIClient(settings *conf.Settings) *APIClient {
	return &APIClient{
		baseURL: fmt.Sprintf("http://%s:%d", settings.Frigate.Host, settings.Frigate.Port),
		httpClient: &http.Client{
			Timeout: defaultAPITimeout,
		},
		cache:   gocache.New(frameCacheTTL, frameCacheCleanup),
		retries: defaultRetries,
		backoff: defaultRetryBackoff,
	}
}

// GetEventSnapshot fetches the best snapshot Frigate stored for an event.
func (c *APIClient) GetEventSnapshot(ctx context.Context, eventID string) ([]byte, error) {
	return c.fetch(ctx, fmt.Sprintf("/api/events/%s/snapshot.jpg", eventID))
}

// GetEventClip fetches the recorded clip for an event.
func (c *APIClient) GetEventClip(ctx context.Context, eventID string) ([]byte, error) {
	return c.fetch(ctx, fmt.Sprintf("/api/events/%s/clip.mp4", eventID))
}

// GetLatestFrame fetches the camera's most recent frame. Responses are
// cached for a short interval per camera.
func (c *APIClient) GetLatestFrame(ctx context.Context, camera string) ([]byte, error) {
	cacheKey := "frame:" + camera
	if cached, found := c.cache.Get(cacheKey); found {
		return cached.([]byte), nil
	}

	data, err := c.fetch(ctx, fmt.Sprintf("/api/%s/latest.jpg", camera))
	if err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, data, frameCacheTTL)
	return data, nil
}

// fetch performs a GET with retries on transport errors and 5xx responses.
// 4xx responses fail immediately.
func (c *APIClient) fetch(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			frigateLogger.Debug("Retrying Frigate API request",
				"url", url,
				"attempt", attempt)
		}

		data, retryable, err := c.doRequest(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, errors.Newf("fetching %s: %w", url, lastErr).
		Category(errors.CategoryImageFetch).
		Component("frigate").
		Context("url", url).
		Build()
}

func (c *APIClient) doRequest(ctx context.Context, url string) (data []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, err
		}
		return body, false, nil
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: %s", resp.Status)
	default:
		return nil, false, fmt.Errorf("unexpected status: %s", resp.Status)
	}
}
