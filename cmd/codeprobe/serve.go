package main

import (
	"context"
	"os"

	"codeprobe/internal/api"
	"codeprobe/internal/config"
	"codeprobe/internal/shutdown"

	"github.com/spf13/cobra"
)

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{withSource: true, structured: true})
	if err != nil {
		return err
	}

	if a.source == nil {
		a.logger.Warn("未配置RPC节点，合约地址分析不可用")
	}

	// 数据库配置源同时提供在线配置项接口
	var settings api.SettingsStore
	if dsn := os.Getenv(config.DBDSNEnv); dsn != "" {
		dbConfig, err := config.NewDatabaseConfig(dsn, a.logger)
		if err != nil {
			a.Close()
			return err
		}
		defer dbConfig.Close()
		settings = dbConfig
	}

	listenPort := a.cfg.Server.Port
	if cmd.Flags().Changed("port") {
		listenPort = port
	}

	server := api.NewServer(a.cfg, a.svc, settings, a.logger)

	gs := shutdown.NewManager(shutdown.DefaultTimeout, a.logger)
	gs.Register("http-server", shutdown.OrderHTTPServer, server.Stop)
	gs.Register("output", shutdown.OrderFlushOutput, func(context.Context) error {
		return a.out.Close()
	})
	if a.store != nil {
		gs.Register("report-store", shutdown.OrderCloseStore, func(context.Context) error {
			return a.store.Close()
		})
	}
	if a.source != nil {
		gs.Register("chain-source", shutdown.OrderCloseSource, func(context.Context) error {
			a.source.Close()
			return nil
		})
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(listenPort)
		gs.Trigger()
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := gs.Wait(ctx); err != nil {
		a.logger.Errorf("停机异常: %v", err)
	}

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}
