package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"codeprobe/internal/config"
	"codeprobe/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SettingsStore 可在线修改的配置项（数据库配置源）
type SettingsStore interface {
	ListSettings() (map[string]string, error)
	UpdateSetting(key, value string) error
}

// Server API服务器
type Server struct {
	config     *config.Config
	svc        *service.Service
	settings   SettingsStore
	logger     *logrus.Logger
	logManager *LogManager
	router     *gin.Engine
	startedAt  time.Time

	mu      sync.Mutex
	server  *http.Server
	stopped bool
}

// NewServer 创建新的API服务器，settings为空时不注册配置项接口
func NewServer(cfg *config.Config, svc *service.Service, settings SettingsStore, logger *logrus.Logger) *Server {
	maxLogs := 0
	if cfg != nil && cfg.Server != nil {
		maxLogs = cfg.Server.MaxLogs
	}

	logManager := NewLogManager(maxLogs)
	logger.AddHook(NewLogHook(logManager))

	s := &Server{
		config:     cfg,
		svc:        svc,
		settings:   settings,
		logger:     logger,
		logManager: logManager,
		startedAt:  time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.corsMiddleware())
	router.Use(s.requestLogger())
	s.setupRoutes(router)
	s.router = router

	return s
}

// Handler 返回HTTP处理器
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动API服务器，阻塞直到Stop被调用；Stop之后调用直接返回
func (s *Server) Start(port int) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()

	s.logger.Infof("API服务器启动在端口 %d", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 停止API服务器，可在Start之前调用
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("API服务器停止中")
	return srv.Shutdown(ctx)
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", s.healthCheck)

	api := router.Group("/api/v1")
	{
		// 字节码分析
		api.POST("/analyze", s.analyze)
		api.GET("/contracts/:address/analysis", s.analyzeContract)

		// 分析报告
		api.GET("/reports", s.listReports)
		api.GET("/reports/:hash", s.getReport)

		// 所有权证明
		api.POST("/proofs", s.generateProof)
		api.POST("/proofs/verify", s.verifyProof)

		// 运行状态
		api.GET("/stats", s.getStats)
		api.GET("/config", s.getConfig)
		api.GET("/nodes", s.getNodes)

		// 日志管理
		api.GET("/logs", s.getLogs)
		api.DELETE("/logs", s.clearLogs)

		if s.settings != nil {
			api.GET("/settings", s.listSettings)
			api.PUT("/settings", s.updateSetting)
		}
	}
}

// corsMiddleware 跨域处理
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger 通过logrus记录请求，日志同时进入LogManager
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// 日志接口本身不记录
		if c.FullPath() == "/api/v1/logs" {
			return
		}

		s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Info("HTTP请求")
	}
}
