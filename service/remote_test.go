package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRemoteClient(url, key string, timeout time.Duration) *RemoteClient {
	cfg := testRemovalConfig()
	cfg.APIURL = url
	cfg.APIKey = key
	cfg.Timeout = timeout
	return NewRemoteClient(cfg)
}

func TestRemoteClient_MissingCredential(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	for _, key := range []string{"", "free", "  "} {
		client := newRemoteClient(server.URL, key, time.Second)
		assert.False(t, client.Configured())

		res, err := client.Extract(context.Background(), []byte("img"))
		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrCredentialMissing)
	}
	assert.Zero(t, hits.Load())
}

func TestRemoteClient_Success(t *testing.T) {
	input := subjectPNG(t, 8, 8)
	output := subjectPNG(t, 4, 4)

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "auto", r.FormValue("size"))

		file, _, err := r.FormFile("image_file")
		require.NoError(t, err)
		got, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, input, got)

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(output)
	}))
	defer server.Close()

	client := newRemoteClient(server.URL, "secret", time.Second)
	res, err := client.Extract(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, output, res.Data)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRemoteClient_SniffsOctetStream(t *testing.T) {
	output := subjectPNG(t, 4, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(output)
	}))
	defer server.Close()

	res, err := newRemoteClient(server.URL, "secret", time.Second).Extract(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.ContentType)
}

func TestRemoteClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantMsg    string
	}{
		{
			name: "remove.bg error payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusPaymentRequired)
				_, _ = w.Write([]byte(`{"errors":[{"title":"Insufficient credits","code":"insufficient_credits"}]}`))
			},
			wantStatus: http.StatusPaymentRequired,
			wantMsg:    "Insufficient credits",
		},
		{
			name: "plain text error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("upstream exploded\n"))
			},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "upstream exploded",
		},
		{
			name: "empty image body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				w.WriteHeader(http.StatusOK)
			},
			wantStatus: http.StatusOK,
			wantMsg:    "empty response body",
		},
		{
			name: "image header over text body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				_, _ = w.Write([]byte("definitely not a png"))
			},
			wantStatus: http.StatusOK,
			wantMsg:    "unexpected content type",
		},
		{
			name: "success without image",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"data":{}}`))
			},
			wantStatus: http.StatusOK,
			wantMsg:    "unexpected content type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := newRemoteClient(server.URL, "secret", time.Second).Extract(context.Background(), []byte("x"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRemoteUnavailable)

			var remoteErr *RemoteError
			require.True(t, errors.As(err, &remoteErr))
			assert.Equal(t, tt.wantStatus, remoteErr.StatusCode)
			assert.Contains(t, remoteErr.Message, tt.wantMsg)
		})
	}
}

// blockUntilDone 读完请求体后等待客户端放弃；读完请求体后服务端才会感知连接断开
func blockUntilDone(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	select {
	case <-r.Context().Done():
	case <-time.After(2 * time.Second):
	}
}

func TestRemoteClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(blockUntilDone))
	defer func() {
		server.CloseClientConnections()
		server.Close()
	}()

	start := time.Now()
	_, err := newRemoteClient(server.URL, "secret", 50*time.Millisecond).Extract(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Contains(t, err.Error(), "deadline exceeded")
	assert.Less(t, time.Since(start), time.Second)
}

func TestRemoteClient_CallerCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(blockUntilDone))
	defer func() {
		server.CloseClientConnections()
		server.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := newRemoteClient(server.URL, "secret", 5*time.Second).Extract(ctx, []byte("x"))
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Contains(t, err.Error(), "context canceled")
	assert.Less(t, time.Since(start), time.Second)
}

func TestRemoteClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newRemoteClient(url, "secret", time.Second).Extract(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrRemoteUnavailable)

	var remoteErr *RemoteError
	assert.False(t, errors.As(err, &remoteErr))
}
