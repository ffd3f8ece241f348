package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/removerio/removerio/config"
	"github.com/removerio/removerio/model"
	"github.com/stretchr/testify/require"
)

func testRemovalConfig() *config.RemovalConfig {
	return &config.RemovalConfig{
		APIURL:        "http://127.0.0.1:0/unused",
		Size:          "auto",
		Timeout:       time.Second,
		Sensitivity:   0.15,
		Border:        "background",
		MaxConcurrent: 2,
		QueueTimeout:  time.Second,
	}
}

// subjectPNG 灰色背景中间一个红色方块
func subjectPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 120, G: 120, B: 120, A: 255}
			if x >= w/4 && x < 3*w/4 && y >= h/4 && y < 3*h/4 {
				c = color.NRGBA{R: 220, G: 30, B: 40, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return encodeTestPNG(t, img)
}

func encodeTestPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeExtractor struct {
	calls   atomic.Int32
	result  *RemoteImage
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte) (*RemoteImage, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type mapStore struct {
	mu   sync.Mutex
	data map[string]*model.RemovalResult
}

func newMapStore() *mapStore {
	return &mapStore{data: map[string]*model.RemovalResult{}}
}

func (m *mapStore) Get(_ context.Context, key string) (*model.RemovalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *mapStore) Set(_ context.Context, key string, r *model.RemovalResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = r
	return nil
}

func (m *mapStore) Close() error { return nil }

func (m *mapStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
