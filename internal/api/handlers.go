package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	probeerrors "codeprobe/internal/errors"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type analyzeRequest struct {
	Bytecode string `json:"bytecode"`
}

type proofRequest struct {
	Challenge       string `json:"challenge"`
	ContractAddress string `json:"contract_address"`
}

// Proof 可以是证明记录的JSON字符串，也可以直接是记录对象
type verifyRequest struct {
	Challenge string          `json:"challenge"`
	Proof     json.RawMessage `json:"proof"`
}

// writeError 按ProbeError映射HTTP状态码
func writeError(c *gin.Context, err error) {
	perr := probeerrors.AsProbeError(err)
	c.JSON(perr.HTTPStatus(), gin.H{
		"error":   perr.Type.String(),
		"code":    perr.Code,
		"message": perr.Error(),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "BadRequest",
		"code":    "BAD_REQUEST",
		"message": err.Error(),
	})
}

// pagination 解析分页参数
func pagination(c *gin.Context) (int, int) {
	page := 1
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}

	pageSize := defaultPageSize
	if ps, err := strconv.Atoi(c.Query("pageSize")); err == nil && ps > 0 {
		pageSize = ps
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return page, pageSize
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "codeprobe",
		"strict":    s.svc.Strict(),
		"source":    s.svc.HasSource(),
		"store":     s.svc.HasStore(),
	})
}

// analyze 分析请求中的十六进制字节码
func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	report, err := s.svc.Analyze(c.Request.Context(), req.Bytecode)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// analyzeContract 获取链上代码并分析
func (s *Server) analyzeContract(c *gin.Context) {
	report, err := s.svc.AnalyzeAddress(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// listReports 分页列出已保存的报告
func (s *Server) listReports(c *gin.Context) {
	page, pageSize := pagination(c)

	reports, total, err := s.svc.Reports(page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports":  reports,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// getReport 按SHA-256哈希获取报告
func (s *Server) getReport(c *gin.Context) {
	report, err := s.svc.Report(c.Param("hash"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// generateProof 生成证明，响应体即证明记录本身
func (s *Server) generateProof(c *gin.Context) {
	var req proofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	encoded, err := s.svc.GenerateProof(req.Challenge, req.ContractAddress)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(encoded))
}

// verifyProof 验证证明
func (s *Server) verifyProof(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	proofJSON := string(req.Proof)
	var asString string
	if err := json.Unmarshal(req.Proof, &asString); err == nil {
		proofJSON = asString
	}

	valid, err := s.svc.VerifyProof(req.Challenge, proofJSON)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

// getStats 获取运行统计
func (s *Server) getStats(c *gin.Context) {
	stats := gin.H{
		"uptime": time.Since(s.startedAt).String(),
		"logs":   s.logManager.Len(),
	}

	if s.svc.HasStore() {
		count, err := s.svc.ReportCount()
		if err != nil {
			writeError(c, err)
			return
		}
		stats["reports"] = count
	}

	stats["errors"] = s.svc.Stats()
	c.JSON(http.StatusOK, stats)
}

// getConfig 获取当前配置
func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"config": s.config,
	})
}

// getNodes 获取配置的RPC节点
func (s *Server) getNodes(c *gin.Context) {
	nodes := make([]gin.H, 0)
	if s.config != nil && s.config.Chain != nil {
		for _, node := range s.config.Chain.Nodes {
			nodes = append(nodes, gin.H{
				"name":     node.Name,
				"url":      node.URL,
				"priority": node.Priority,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"nodes": nodes,
		"total": len(nodes),
	})
}

// getLogs 获取日志
func (s *Server) getLogs(c *gin.Context) {
	level := c.Query("level")
	page, pageSize := pagination(c)

	logs, total := s.logManager.Page(level, page, pageSize)

	c.JSON(http.StatusOK, gin.H{
		"logs":     logs,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
		"level":    level,
	})
}

// clearLogs 清空日志
func (s *Server) clearLogs(c *gin.Context) {
	s.logManager.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "日志已清空"})
}

// listSettings 列出数据库中的配置项
func (s *Server) listSettings(c *gin.Context) {
	settings, err := s.settings.ListSettings()
	if err != nil {
		writeError(c, probeerrors.ErrConfigInvalid.WithCause(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// updateSetting 更新配置项，重启后生效
func (s *Server) updateSetting(c *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := s.settings.UpdateSetting(req.Key, req.Value); err != nil {
		badRequest(c, err)
		return
	}

	s.logger.Infof("配置项已更新: %s", req.Key)
	c.JSON(http.StatusOK, gin.H{
		"message": "配置已更新",
		"key":     req.Key,
	})
}
