package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/removerio/removerio/config"
	"github.com/removerio/removerio/middleware"
	"github.com/removerio/removerio/service"
)

// BuildInfo 构建信息，由 main 通过 ldflags 注入
type BuildInfo struct {
	Version   string
	BuildTime string
	BuildID   string
	GitCommit string
	GitBranch string
}

// NewRouter 注册全部路由
func NewRouter(cfg *config.Config, build BuildInfo, removal *service.RemovalService, payment *service.PaymentService) *gin.Engine {
	removalHandler := NewRemovalHandler(cfg, removal)
	paymentHandler := NewPaymentHandler(payment)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.Server.AllowOrigins))
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": build.Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    build.Version,
			"build_time": build.BuildTime,
			"build_id":   build.BuildID,
			"git_commit": build.GitCommit,
			"git_branch": build.GitBranch,
		})
	})

	// 支付路由沿用编辑器前端的旧路径
	api := r.Group("/api")
	{
		api.GET("/test", paymentHandler.Status)
		api.POST("/verify-payment", paymentHandler.Verify)
	}

	v1 := r.Group("/api/v1")
	{
		v1.POST("/remove-background", removalHandler.Remove)
		v1.GET("/result/:md5", removalHandler.GetByMD5)
	}

	return r
}
