package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/removerio/removerio/config"
)

var (
	// ErrPaymentNotConfigured 未配置支付网关密钥
	ErrPaymentNotConfigured = errors.New("payment secret key not configured")
	// ErrReferenceRequired 缺少交易号
	ErrReferenceRequired = errors.New("reference is required")
	// ErrGatewayUnreachable 网关网络错误
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")
)

// GatewayError 网关返回非 2xx
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway error: status %d: %s", e.StatusCode, e.Message)
}

// Verification 交易校验结果
type Verification struct {
	Status string
	Data   json.RawMessage
}

// Paid 交易状态为 success
func (v *Verification) Paid() bool {
	return v.Status == "success"
}

// PaymentService 转发 Paystack 交易校验，不参与背景去除
type PaymentService struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewPaymentService(cfg *config.PaymentConfig) *PaymentService {
	return &PaymentService{
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured 是否配置了密钥
func (s *PaymentService) Configured() bool {
	return s.secretKey != ""
}

// Verify 查询交易状态
func (s *PaymentService) Verify(ctx context.Context, reference string) (*Verification, error) {
	if !s.Configured() {
		return nil, ErrPaymentNotConfigured
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrReferenceRequired
	}

	endpoint := s.baseURL + "/transaction/verify/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrGatewayUnreachable, err)
	}

	var payload struct {
		Status  bool            `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	decodeErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := payload.Message
		if decodeErr != nil || msg == "" {
			msg = "Paystack API error"
		}
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrGatewayUnreachable, decodeErr)
	}

	var tx struct {
		Status string `json:"status"`
	}
	if len(payload.Data) > 0 {
		_ = json.Unmarshal(payload.Data, &tx)
	}

	return &Verification{Status: tx.Status, Data: payload.Data}, nil
}
