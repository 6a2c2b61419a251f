package frigate

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanceAddiction/DogShitAEye/internal/conf"
	"github.com/DanceAddiction/DogShitAEye/internal/errors"
)

func newTestAPIClient(t *testing.T) *APIClient {
	t.Helper()
	settings := &conf.Settings{}
	settings.Frigate.Host = "frigate.local"
	settings.Frigate.Port = 5000

	client := NewAPIClient(settings)
	client.backoff = 0
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestGetEventSnapshot(t *testing.T) {
	client := newTestAPIClient(t)
	httpmock.RegisterResponder(http.MethodGet,
		"http://frigate.local:5000/api/events/1700000000.0-abc/snapshot.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte("jpeg-bytes")))

	data, err := client.GetEventSnapshot(context.Background(), "1700000000.0-abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestGetEventClip(t *testing.T) {
	client := newTestAPIClient(t)
	httpmock.RegisterResponder(http.MethodGet,
		"http://frigate.local:5000/api/events/evt1/clip.mp4",
		httpmock.NewBytesResponder(http.StatusOK, []byte("mp4-bytes")))

	data, err := client.GetEventClip(context.Background(), "evt1")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4-bytes"), data)
}

func TestGetLatestFrameCachesResponse(t *testing.T) {
	client := newTestAPIClient(t)
	httpmock.RegisterResponder(http.MethodGet,
		"http://frigate.local:5000/api/front_yard/latest.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte("frame")))

	first, err := client.GetLatestFrame(context.Background(), "front_yard")
	require.NoError(t, err)
	second, err := client.GetLatestFrame(context.Background(), "front_yard")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	client := newTestAPIClient(t)
	calls := 0
	httpmock.RegisterResponder(http.MethodGet,
		"http://frigate.local:5000/api/events/evt1/snapshot.jpg",
		func(*http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(http.StatusInternalServerError, "boom"), nil
			}
			return httpmock.NewBytesResponse(http.StatusOK, []byte("ok")), nil
		})

	data, err := client.GetEventSnapshot(context.Background(), "evt1")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.Equal(t, 3, calls)
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	client := newTestAPIClient(t)
	httpmock.RegisterResponder(http.MethodGet,
		"http://frigate.local:5000/api/events/missing/snapshot.jpg",
		httpmock.NewStringResponder(http.StatusNotFound, "not found"))

	_, err := client.GetEventSnapshot(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryImageFetch))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}
