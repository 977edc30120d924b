package main

import (
	"fmt"

	"codeprobe/internal/config"
	"codeprobe/internal/logging"
	"codeprobe/internal/output"
	"codeprobe/internal/service"
	"codeprobe/internal/source"
	"codeprobe/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app 命令运行所需的组件
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	out    output.Output
	store  *store.ReportStore
	source *source.ChainSource
	svc    *service.Service
}

type appOptions struct {
	withSource bool // 连接RPC节点
	withStore  bool // 强制打开报告数据库
	structured bool // 启用slog结构化日志
}

// loadConfig 加载配置并应用命令行覆盖
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("strict") {
		cfg.Analysis.Strict = strict
	}
	if flags.Changed("output") {
		cfg.Output.Directory = outputPath
	}
	if flags.Changed("format") {
		cfg.Output.Format = format
	}
	if flags.Changed("store") {
		cfg.Analysis.Store = useStore
	}
	if flags.Changed("store-path") {
		cfg.Analysis.StorePath = storePath
	}
	if rpcURL != "" {
		cfg.Chain.Nodes = []*config.NodeConfig{{Name: "cli", URL: rpcURL, Priority: 0}}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}
	return cfg, nil
}

// newApp 根据配置组装服务
func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Logging, verbose)
	if err != nil {
		return nil, fmt.Errorf("创建日志器失败: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	a.out, err = output.NewOutput(cfg.Output, logger)
	if err != nil {
		return nil, fmt.Errorf("创建输出器失败: %w", err)
	}

	if cfg.Analysis.Store || opts.withStore {
		a.store, err = store.NewReportStore(cfg.Analysis.StorePath, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	if opts.withSource && len(cfg.Chain.Nodes) > 0 {
		a.source, err = source.NewChainSource(cfg.Chain, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	svcOpts := service.Options{
		Logger: logger,
		Output: a.out,
		Strict: cfg.Analysis.Strict,
	}
	// 避免将nil指针包装成非nil接口
	if a.store != nil {
		svcOpts.Store = a.store
	}
	if a.source != nil {
		svcOpts.Source = a.source
	}
	if opts.structured {
		structured, err := logging.NewStructuredLogger(cfg.Logging)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("创建结构化日志器失败: %w", err)
		}
		svcOpts.Structured = structured
	}

	a.svc = service.New(svcOpts)
	return a, nil
}

// Close 释放所有组件
func (a *app) Close() {
	if a.out != nil {
		if err := a.out.Close(); err != nil {
			a.logger.Warnf("关闭输出器失败: %v", err)
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.source != nil {
		a.source.Close()
	}
}
