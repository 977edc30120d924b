package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// 通用参数
	configFile string
	verbose    bool
	strict     bool
	outputPath string
	format     string
	rpcURL     string
	storePath  string
	useStore   bool

	// 子命令参数
	address   string
	challenge string
	port      int
	page      int
	pageSize  int
)

// errProofInvalid 证明验证失败，进程以1退出
var errProofInvalid = errors.New("证明无效")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errProofInvalid) {
			fmt.Fprintf(os.Stderr, "执行失败: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "codeprobe",
		Short:         "合约字节码分析与所有权证明工具",
		Long:          `分析EVM合约字节码（哈希、模式检测、熵），生成并验证基于挑战值的合约所有权证明`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "configs/config.yaml", "配置文件路径")
	flags.BoolVar(&verbose, "verbose", false, "详细输出")
	flags.BoolVar(&strict, "strict", false, "严格模式：无效的十六进制输入直接报错")
	flags.StringVar(&outputPath, "output", "", "输出目录（覆盖配置）")
	flags.StringVar(&format, "format", "", "输出格式 none|json|kafka（覆盖配置）")
	flags.StringVar(&rpcURL, "rpc", "", "RPC节点地址（覆盖配置中的节点）")
	flags.StringVar(&storePath, "store-path", "", "报告数据库路径（覆盖配置）")
	flags.BoolVar(&useStore, "store", false, "保存分析报告")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [bytecode-hex]",
		Short: "分析十六进制字节码或链上合约",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().StringVar(&address, "address", "", "合约地址（从RPC节点获取运行时字节码）")

	proveCmd := &cobra.Command{
		Use:   "prove <contract-address>",
		Short: "生成所有权证明",
		Args:  cobra.ExactArgs(1),
		RunE:  runProve,
	}
	proveCmd.Flags().StringVar(&challenge, "challenge", "", "挑战值（十六进制）")

	verifyCmd := &cobra.Command{
		Use:   "verify <proof-json>",
		Short: "验证所有权证明，无效时以1退出",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}
	verifyCmd.Flags().StringVar(&challenge, "challenge", "", "挑战值（十六进制）")

	reportCmd := &cobra.Command{
		Use:   "report [sha256]",
		Short: "查看已保存的分析报告",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runReport,
	}
	reportCmd.Flags().IntVar(&page, "page", 1, "页码")
	reportCmd.Flags().IntVar(&pageSize, "page-size", 20, "每页数量")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "启动HTTP API服务",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "API服务端口（覆盖配置）")

	rootCmd.AddCommand(analyzeCmd, proveCmd, verifyCmd, reportCmd, serveCmd)
	return rootCmd
}
