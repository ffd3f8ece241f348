package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/removerio/removerio/config"
	"github.com/removerio/removerio/middleware"
	"github.com/removerio/removerio/model"
	"github.com/removerio/removerio/segment"
	"github.com/removerio/removerio/service"
	"github.com/removerio/removerio/utils"
	"go.uber.org/zap"
)

// StrategyHeader 原始图片响应中标明实际使用的策略
const StrategyHeader = "X-Removal-Strategy"

type RemovalHandler struct {
	cfg     *config.Config
	removal *service.RemovalService
}

func NewRemovalHandler(cfg *config.Config, removal *service.RemovalService) *RemovalHandler {
	return &RemovalHandler{
		cfg:     cfg,
		removal: removal,
	}
}

// Remove 上传图片并去除背景
func (h *RemovalHandler) Remove(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		utils.Logger.Warn("failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "image file is required",
			Error:   err.Error(),
		})
		return
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("file exceeds size limit (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return
	}

	f, err := file.Open()
	if err != nil {
		h.internalError(c, "failed to read upload", err)
		return
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(f, h.cfg.Upload.MaxSize+1))
	if err != nil {
		h.internalError(c, "failed to read upload", err)
		return
	}

	// 按内容判断类型，不信任客户端的 Content-Type
	detected := mimetype.Detect(data)
	if !h.isAllowedType(detected.String()) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "unsupported file type",
			Error:   detected.String(),
		})
		return
	}

	method, err := service.ParseMethod(c.PostForm("method"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "invalid parameters",
			Error:   err.Error(),
		})
		return
	}
	opts, err := parseOptions(c.PostForm("sensitivity"), c.PostForm("border"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "invalid parameters",
			Error:   err.Error(),
		})
		return
	}

	utils.Logger.Info("file uploaded",
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("filename", file.Filename),
		zap.String("content_type", detected.String()),
		zap.String("method", string(method)),
		zap.Int64("size", file.Size))

	outcome := h.removal.Remove(c.Request.Context(), service.Request{
		Image:   data,
		Method:  method,
		Options: opts,
	})
	if !outcome.OK() {
		h.removalFailed(c, outcome.Err)
		return
	}

	if c.Query("format") == "raw" {
		c.Header(StrategyHeader, string(outcome.Strategy))
		c.Data(http.StatusOK, outcome.ContentType, outcome.Image)
		return
	}

	message := "background removed"
	if outcome.Cached {
		message = "background removed (cached)"
	}
	c.JSON(http.StatusOK, model.RemovalResponse{
		Success: true,
		Message: message,
		Data: &model.RemovalData{
			DataURI:     service.DataURI(outcome.ContentType, outcome.Image),
			MD5:         outcome.MD5,
			Method:      string(method),
			Strategy:    string(outcome.Strategy),
			ContentType: outcome.ContentType,
			Width:       outcome.Width,
			Height:      outcome.Height,
			Cached:      outcome.Cached,
		},
	})
}

// GetByMD5 根据MD5查询已缓存的结果
func (h *RemovalHandler) GetByMD5(c *gin.Context) {
	md5 := c.Param("md5")
	if md5 == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "md5 is required",
		})
		return
	}

	method, err := service.ParseMethod(c.Query("method"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "invalid parameters",
			Error:   err.Error(),
		})
		return
	}
	opts, err := parseOptions(c.Query("sensitivity"), c.Query("border"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "invalid parameters",
			Error:   err.Error(),
		})
		return
	}

	result, err := h.removal.Lookup(c.Request.Context(), md5, method, opts)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOptions) {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Success: false,
				Message: "invalid parameters",
				Error:   err.Error(),
			})
			return
		}
		h.internalError(c, "failed to query result", err)
		return
	}

	if result == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "result not found",
		})
		return
	}

	c.JSON(http.StatusOK, model.RemovalResponse{
		Success: true,
		Message: "ok",
		Data: &model.RemovalData{
			DataURI:     service.DataURI(result.ContentType, result.Image),
			MD5:         result.MD5,
			Method:      result.Method,
			Strategy:    result.Strategy,
			ContentType: result.ContentType,
			Width:       result.Width,
			Height:      result.Height,
			Cached:      true,
		},
	})
}

func (h *RemovalHandler) removalFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDecode):
		// 与编辑器约定：解码失败返回 data: null
		c.JSON(http.StatusBadRequest, model.RemovalResponse{
			Success: false,
			Message: "could not decode image",
			Data:    nil,
		})
	case errors.Is(err, service.ErrInvalidOptions):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "invalid parameters",
			Error:   err.Error(),
		})
	case errors.Is(err, service.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Success: false,
			Message: "server busy, try again later",
		})
	default:
		h.internalError(c, "background removal failed", err)
	}
}

func (h *RemovalHandler) internalError(c *gin.Context, message string, err error) {
	utils.Logger.Error(message,
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.Error(err))
	sentry.CaptureException(err)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}

func (h *RemovalHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

// parseOptions 空字段交给服务默认值
func parseOptions(sensitivity, border string) (segment.Options, error) {
	var opts segment.Options
	if s := strings.TrimSpace(sensitivity); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return opts, fmt.Errorf("sensitivity: %w", err)
		}
		opts.Sensitivity = v
	}
	opts.Border = segment.Border(strings.TrimSpace(border))
	return opts, nil
}
