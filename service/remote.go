package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/removerio/removerio/config"
)

// freeCredential 前端约定的占位凭证，等同于未配置
const freeCredential = "free"

const maxErrorBody = 64 << 10

// Extractor 远程前景提取
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*RemoteImage, error)
}

// RemoteImage 远程服务返回的图片
type RemoteImage struct {
	Data        []byte
	ContentType string
}

// RemoteClient 调用 remove.bg 风格的前景提取接口
type RemoteClient struct {
	apiKey  string
	apiURL  string
	size    string
	timeout time.Duration
	client  *http.Client
}

func NewRemoteClient(cfg *config.RemovalConfig) *RemoteClient {
	return &RemoteClient{
		apiKey:  cfg.APIKey,
		apiURL:  cfg.APIURL,
		size:    cfg.Size,
		timeout: cfg.Timeout,
		client:  &http.Client{},
	}
}

// Configured 凭证存在且不是占位值
func (c *RemoteClient) Configured() bool {
	key := strings.TrimSpace(c.apiKey)
	return key != "" && key != freeCredential
}

// Extract 发起一次请求。未配置凭证时直接返回 ErrCredentialMissing，不产生网络请求。
func (c *RemoteClient) Extract(ctx context.Context, data []byte) (*RemoteImage, error) {
	if !c.Configured() {
		return nil, ErrCredentialMissing
	}

	body, contentType, err := c.buildForm(data)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrRemoteUnavailable, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "image/*")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRemoteUnavailable, err)
	}

	if len(payload) == 0 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: "empty response body"}
	}

	// 以内容为准，响应头只用于错误信息
	declared := resp.Header.Get("Content-Type")
	mediaType := mimetype.Detect(payload).String()
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, &RemoteError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected content type %s (declared %q)", mediaType, declared),
		}
	}
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}

	return &RemoteImage{Data: payload, ContentType: mediaType}, nil
}

func (c *RemoteClient) buildForm(data []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image_file", "image")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}

	size := c.size
	if size == "" {
		size = "auto"
	}
	_ = writer.WriteField("size", size)
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

// errorMessage 提取 {"errors":[{"title":"..."}]}，否则返回原始内容
func errorMessage(raw []byte) string {
	var payload struct {
		Errors []struct {
			Title string `json:"title"`
			Code  string `json:"code"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Errors) > 0 {
		titles := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			titles = append(titles, e.Title)
		}
		return strings.Join(titles, "; ")
	}
	return strings.TrimSpace(string(raw))
}
