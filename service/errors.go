package service

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialMissing 未配置远程服务凭证，触发本地回退
	ErrCredentialMissing = errors.New("remote credential not configured")
	// ErrRemoteUnavailable 远程服务超时、网络错误或返回非 2xx，触发本地回退
	ErrRemoteUnavailable = errors.New("remote extraction unavailable")
	// ErrDecode 输入无法解码为像素数据，本次调用失败
	ErrDecode = errors.New("image decode failed")
	// ErrInvalidOptions 请求参数不合法
	ErrInvalidOptions = errors.New("invalid removal options")
	// ErrQueueFull 等待处理槽位超时
	ErrQueueFull = errors.New("processing queue is full")
)

// RemoteError 远程服务返回的错误
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: status %d: %s", e.StatusCode, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return ErrRemoteUnavailable
}
