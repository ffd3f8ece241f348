package model

import "encoding/json"

// VerifyPaymentRequest 支付校验请求
type VerifyPaymentRequest struct {
	Reference string `json:"reference"`
}

// VerifyPaymentResponse 支付校验响应
type VerifyPaymentResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Details string          `json:"details,omitempty"`
}
