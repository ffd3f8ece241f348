package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/removerio/removerio/model"
	"github.com/removerio/removerio/service"
	"github.com/removerio/removerio/utils"
	"go.uber.org/zap"
)

// PaymentHandler 编辑器导出付费的交易校验
type PaymentHandler struct {
	payment *service.PaymentService
}

func NewPaymentHandler(payment *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payment: payment}
}

// Status 路由自检
func (h *PaymentHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":         "Payment routes working",
		"secretKeyExists": h.payment.Configured(),
	})
}

// Verify 校验交易号
func (h *PaymentHandler) Verify(c *gin.Context) {
	if !h.payment.Configured() {
		utils.Logger.Error("payment secret key is missing")
		c.JSON(http.StatusInternalServerError, model.VerifyPaymentResponse{
			Success: false,
			Error:   "Server configuration error",
			Details: "Paystack secret key not configured",
		})
		return
	}

	var req model.VerifyPaymentRequest
	// 请求体无法解析时按缺少交易号处理
	_ = c.ShouldBindJSON(&req)

	verification, err := h.payment.Verify(c.Request.Context(), req.Reference)
	if err != nil {
		h.verifyFailed(c, req.Reference, err)
		return
	}

	if !verification.Paid() {
		utils.Logger.Info("payment not completed",
			zap.String("reference", req.Reference),
			zap.String("status", verification.Status))
		c.JSON(http.StatusOK, model.VerifyPaymentResponse{
			Success: false,
			Error:   fmt.Sprintf("Payment status: %s", verification.Status),
		})
		return
	}

	utils.Logger.Info("payment verified", zap.String("reference", req.Reference))
	c.JSON(http.StatusOK, model.VerifyPaymentResponse{
		Success: true,
		Data:    verification.Data,
	})
}

func (h *PaymentHandler) verifyFailed(c *gin.Context, reference string, err error) {
	var gatewayErr *service.GatewayError
	switch {
	case errors.Is(err, service.ErrReferenceRequired):
		c.JSON(http.StatusBadRequest, model.VerifyPaymentResponse{
			Success: false,
			Error:   "Reference is required",
		})
	case errors.As(err, &gatewayErr):
		utils.Logger.Warn("payment gateway rejected verification",
			zap.String("reference", reference),
			zap.Int("status", gatewayErr.StatusCode),
			zap.String("message", gatewayErr.Message))
		if gatewayErr.StatusCode == http.StatusNotFound {
			c.JSON(http.StatusNotFound, model.VerifyPaymentResponse{
				Success: false,
				Error:   "Transaction not found - Invalid reference",
			})
			return
		}
		c.JSON(gatewayErr.StatusCode, model.VerifyPaymentResponse{
			Success: false,
			Error:   gatewayErr.Message,
		})
	default:
		utils.Logger.Error("payment verification failed",
			zap.String("reference", reference),
			zap.Error(err))
		sentry.CaptureException(err)
		c.JSON(http.StatusInternalServerError, model.VerifyPaymentResponse{
			Success: false,
			Error:   "Network error during verification",
		})
	}
}
