package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/removerio/removerio/config"
	"github.com/removerio/removerio/model"
	"github.com/removerio/removerio/segment"
	"github.com/removerio/removerio/utils"
	"go.uber.org/zap"
)

// Method 调用方选择的去除方式
type Method string

const (
	// MethodAPI 先尝试远程服务，失败回退本地
	MethodAPI Method = "api"
	// MethodManual 只走本地流程
	MethodManual Method = "manual"
)

// ParseMethod 空字符串视为 api
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodAPI:
		return MethodAPI, nil
	case MethodManual:
		return MethodManual, nil
	}
	return "", fmt.Errorf("%w: unknown method %q", ErrInvalidOptions, s)
}

// Strategy 实际产出结果的一方
type Strategy string

const (
	StrategyRemote Strategy = "remote"
	StrategyLocal  Strategy = "local"
)

// Request 一次背景去除请求
type Request struct {
	Image   []byte
	Method  Method
	Options segment.Options
}

// Outcome 一次调用的结果：Err 为 nil 时 Image 有效，否则只有 Err
type Outcome struct {
	Image       []byte
	ContentType string
	Strategy    Strategy
	MD5         string
	Width       int
	Height      int
	Cached      bool
	Err         error
}

// OK 是否成功
func (o Outcome) OK() bool {
	return o.Err == nil
}

func failure(err error) Outcome {
	return Outcome{Err: err}
}

// RemovalService 选择远程或本地策略并驱动回退
type RemovalService struct {
	remote       Extractor
	store        ResultStore
	defaults     segment.Options
	workers      int
	semaphore    chan struct{}
	queueTimeout time.Duration
	maxPixels    int64
}

func NewRemovalService(cfg *config.RemovalConfig, remote Extractor, store ResultStore) *RemovalService {
	if store == nil {
		store = nopStore{}
	}
	maxConcurrent := max(cfg.MaxConcurrent, 1)
	maxPixels := cfg.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &RemovalService{
		remote: remote,
		store:  store,
		defaults: segment.Options{
			Sensitivity: cfg.Sensitivity,
			Border:      segment.Border(cfg.Border),
		}.WithDefaults(),
		workers:      cfg.Workers,
		semaphore:    make(chan struct{}, maxConcurrent),
		queueTimeout: cfg.QueueTimeout,
		maxPixels:    maxPixels,
	}
}

// Options 用服务默认值补齐请求参数
func (s *RemovalService) Options(opts segment.Options) segment.Options {
	if opts.Sensitivity == 0 {
		opts.Sensitivity = s.defaults.Sensitivity
	}
	if opts.Border == "" {
		opts.Border = s.defaults.Border
	}
	return opts
}

// Remove 去除背景。远程失败只记录日志并回退本地；
// 返回的 Outcome 要么带图片，要么带 ErrDecode / ErrInvalidOptions / ErrQueueFull。
func (s *RemovalService) Remove(ctx context.Context, req Request) Outcome {
	method, err := ParseMethod(string(req.Method))
	if err != nil {
		return failure(err)
	}
	opts := s.Options(req.Options)
	if err := opts.Validate(); err != nil {
		return failure(fmt.Errorf("%w: %v", ErrInvalidOptions, err))
	}

	// 并发控制
	release, err := s.acquire(ctx)
	if err != nil {
		return failure(err)
	}
	defer release()

	startTime := time.Now()
	md5 := utils.BytesMD5(req.Image)
	key := CacheKey(md5, method, opts)

	if cached, err := s.store.Get(ctx, key); err != nil {
		utils.Logger.Warn("failed to get cache", zap.String("key", key), zap.Error(err))
	} else if cached != nil {
		utils.Logger.Info("cache hit", zap.String("key", key))
		return Outcome{
			Image:       cached.Image,
			ContentType: cached.ContentType,
			Strategy:    Strategy(cached.Strategy),
			MD5:         md5,
			Width:       cached.Width,
			Height:      cached.Height,
			Cached:      true,
		}
	}

	// 只解码一次，两条分支共用
	img, format, err := DecodeImage(req.Image, s.maxPixels)
	if err != nil {
		utils.Logger.Warn("failed to decode image", zap.String("md5", md5), zap.Error(err))
		return failure(err)
	}

	width, height := img.Rect.Dx(), img.Rect.Dy()
	utils.Logger.Info("processing image",
		zap.String("md5", md5),
		zap.String("format", format),
		zap.String("method", string(method)),
		zap.Int("width", width),
		zap.Int("height", height))

	var outcome Outcome
	if method == MethodAPI {
		outcome, err = s.removeRemote(ctx, req.Image)
		if err != nil {
			s.logFallback(md5, err)
		}
	}

	if len(outcome.Image) == 0 {
		res := segment.Remove(img, opts, s.workers)
		encoded, err := EncodePNG(img)
		if err != nil {
			return failure(err)
		}
		outcome = Outcome{
			Image:       encoded,
			ContentType: "image/png",
			Strategy:    StrategyLocal,
		}
		utils.Logger.Debug("local segmentation finished",
			zap.String("md5", md5),
			zap.Int("foreground", res.Foreground),
			zap.Int("pixels", res.Width*res.Height),
			zap.Float64("sensitivity", opts.Sensitivity),
			zap.String("border", string(opts.Border)))
	}

	outcome.MD5 = md5
	outcome.Width = width
	outcome.Height = height

	if requested(method) == outcome.Strategy {
		s.save(ctx, key, method, outcome)
	}

	utils.Logger.Info("background removed",
		zap.String("md5", md5),
		zap.String("strategy", string(outcome.Strategy)),
		zap.Duration("duration", time.Since(startTime)))

	return outcome
}

// Lookup 查询缓存结果
func (s *RemovalService) Lookup(ctx context.Context, md5 string, method Method, opts segment.Options) (*model.RemovalResult, error) {
	opts = s.Options(opts)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return s.store.Get(ctx, CacheKey(md5, method, opts))
}

func (s *RemovalService) removeRemote(ctx context.Context, data []byte) (Outcome, error) {
	if s.remote == nil {
		return Outcome{}, ErrCredentialMissing
	}

	res, err := s.remote.Extract(ctx, data)
	if err != nil {
		return Outcome{}, err
	}
	if res == nil || len(res.Data) == 0 {
		return Outcome{}, fmt.Errorf("%w: empty remote result", ErrRemoteUnavailable)
	}

	return Outcome{
		Image:       res.Data,
		ContentType: res.ContentType,
		Strategy:    StrategyRemote,
	}, nil
}

func (s *RemovalService) logFallback(md5 string, err error) {
	if errors.Is(err, ErrCredentialMissing) {
		utils.Logger.Info("no remote credential, using local segmentation", zap.String("md5", md5))
		return
	}

	fields := []zap.Field{zap.String("md5", md5), zap.Error(err)}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		fields = append(fields, zap.Int("status", remoteErr.StatusCode))
	}
	utils.Logger.Warn("remote extraction failed, using local segmentation", fields...)
}

func (s *RemovalService) save(ctx context.Context, key string, method Method, o Outcome) {
	result := &model.RemovalResult{
		MD5:         o.MD5,
		Method:      string(method),
		Strategy:    string(o.Strategy),
		ContentType: o.ContentType,
		Width:       o.Width,
		Height:      o.Height,
		Image:       o.Image,
		Timestamp:   time.Now().Unix(),
	}
	if err := s.store.Set(ctx, key, result); err != nil {
		utils.Logger.Warn("failed to set cache", zap.String("key", key), zap.Error(err))
	}
}

func (s *RemovalService) acquire(ctx context.Context) (func(), error) {
	release := func() { <-s.semaphore }

	select {
	case s.semaphore <- struct{}{}:
		return release, nil
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		return release, nil
	case <-ctx.Done():
		return nil, ErrQueueFull
	}
}

func requested(m Method) Strategy {
	if m == MethodManual {
		return StrategyLocal
	}
	return StrategyRemote
}

// CacheKey md5 + 方式 + 参数
func CacheKey(md5 string, method Method, opts segment.Options) string {
	return md5 + ":" + string(method) + ":" +
		strconv.FormatFloat(opts.Sensitivity, 'f', -1, 64) + ":" + string(opts.Border)
}
