package source

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"codeprobe/internal/config"
	probeerrors "codeprobe/internal/errors"
	"codeprobe/internal/retry"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// CodeReader 读取合约部署代码，*ethclient.Client 实现该接口
type CodeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Node 字节码来源节点
type Node struct {
	Name     string
	Priority int
	Reader   CodeReader
}

// ChainSource 链上字节码来源
type ChainSource struct {
	nodes   []*Node
	retrier *retry.Retrier
	timeout time.Duration
	logger  *logrus.Logger
}

// NewChainSource 按配置连接所有节点
func NewChainSource(cfg *config.ChainConfig, logger *logrus.Logger) (*ChainSource, error) {
	if cfg == nil || len(cfg.Nodes) == 0 {
		return nil, probeerrors.ErrNoSource
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 15 * time.Second
	}

	var nodes []*Node
	for _, nodeConfig := range cfg.Nodes {
		client, err := ethclient.Dial(nodeConfig.URL)
		if err != nil {
			logger.Warnf("连接节点失败 %s: %v", nodeConfig.Name, err)
			continue
		}

		nodes = append(nodes, &Node{
			Name:     nodeConfig.Name,
			Priority: nodeConfig.Priority,
			Reader:   client,
		})
		logger.Infof("成功连接到节点: %s", nodeConfig.Name)
	}

	if len(nodes) == 0 {
		return nil, probeerrors.ErrRPCFailed.WithContext("reason", "无法连接到任何节点")
	}

	return NewChainSourceWithNodes(nodes, timeout, retry.NewRetrier(retry.RPCPolicy, logger), logger), nil
}

// NewChainSourceWithNodes 使用已有的节点创建来源
func NewChainSourceWithNodes(nodes []*Node, timeout time.Duration, retrier *retry.Retrier, logger *logrus.Logger) *ChainSource {
	sorted := make([]*Node, len(nodes))
	copy(sorted, nodes)

	// 优先级数字越小越优先
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	return &ChainSource{
		nodes:   sorted,
		retrier: retrier,
		timeout: timeout,
		logger:  logger,
	}
}

// CodeAt 获取地址上最新区块的部署代码
//
// 按优先级依次尝试节点，每个节点内部按重试策略重试。
func (s *ChainSource) CodeAt(ctx context.Context, address string) ([]byte, error) {
	if !common.IsHexAddress(address) {
		return nil, probeerrors.ErrInvalidAddress.WithAddress(address)
	}
	account := common.HexToAddress(address)

	var lastErr error
	for _, node := range s.nodes {
		var code []byte
		err := s.retrier.Do(ctx, fmt.Sprintf("eth_getCode@%s", node.Name), func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			var err error
			code, err = node.Reader.CodeAt(callCtx, account, nil)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warnf("节点 %s 获取代码失败: %v", node.Name, err)
			lastErr = err
			continue
		}

		if len(code) == 0 {
			return nil, probeerrors.ErrCodeNotFound.WithAddress(account.Hex())
		}

		s.logger.Debugf("从节点 %s 获取代码 %s (%d 字节)", node.Name, account.Hex(), len(code))
		return code, nil
	}

	return nil, probeerrors.ErrRPCFailed.WithCause(lastErr).WithAddress(account.Hex())
}

// NodeNames 返回按优先级排序的节点名称
func (s *ChainSource) NodeNames() []string {
	names := make([]string, len(s.nodes))
	for i, node := range s.nodes {
		names[i] = node.Name
	}
	return names
}

// Close 关闭所有节点连接
func (s *ChainSource) Close() {
	for _, node := range s.nodes {
		node.Reader.Close()
	}
}
