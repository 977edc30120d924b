package source

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"codeprobe/internal/config"
	probeerrors "codeprobe/internal/errors"
	"codeprobe/internal/retry"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	code   map[common.Address][]byte
	errs   []error
	calls  int
	closed bool
}

func (f *fakeReader) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.code[account], nil
}

func (f *fakeReader) Close() { f.closed = true }

const testAddress = "0x00000000219ab540356cBB839Cbe05303d7705Fa"

func newTestSource(nodes ...*Node) *ChainSource {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	retrier := retry.NewRetrier(retry.Policy{
		Attempts:   2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		Multiplier: 1,
	}, logger)
	return NewChainSourceWithNodes(nodes, time.Second, retrier, logger)
}

func TestCodeAt_Success(t *testing.T) {
	reader := &fakeReader{code: map[common.Address][]byte{
		common.HexToAddress(testAddress): {0x60, 0x80, 0x60, 0x40, 0x52},
	}}
	source := newTestSource(&Node{Name: "primary", Reader: reader})

	code, err := source.CodeAt(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, code)
}

func TestCodeAt_InvalidAddress(t *testing.T) {
	source := newTestSource(&Node{Name: "primary", Reader: &fakeReader{}})

	_, err := source.CodeAt(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, probeerrors.ErrInvalidAddress)
}

func TestCodeAt_NoCode(t *testing.T) {
	source := newTestSource(&Node{Name: "primary", Reader: &fakeReader{}})

	_, err := source.CodeAt(context.Background(), testAddress)
	assert.ErrorIs(t, err, probeerrors.ErrCodeNotFound)
}

func TestCodeAt_RetriesTransientError(t *testing.T) {
	reader := &fakeReader{
		errs: []error{errors.New("connection reset by peer")},
		code: map[common.Address][]byte{common.HexToAddress(testAddress): {0x00}},
	}
	source := newTestSource(&Node{Name: "primary", Reader: reader})

	code, err := source.CodeAt(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, code)
	assert.Equal(t, 2, reader.calls)
}

func TestCodeAt_RetriesRateLimitedNode(t *testing.T) {
	reader := &fakeReader{
		errs: []error{rpc.HTTPError{StatusCode: 429, Status: "429 Too Many Requests"}},
		code: map[common.Address][]byte{common.HexToAddress(testAddress): {0x60}},
	}
	source := newTestSource(&Node{Name: "primary", Reader: reader})

	code, err := source.CodeAt(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60}, code)
	assert.Equal(t, 2, reader.calls)
}

func TestCodeAt_FailoverByPriority(t *testing.T) {
	broken := &fakeReader{errs: []error{errors.New("method not supported")}}
	backup := &fakeReader{code: map[common.Address][]byte{common.HexToAddress(testAddress): {0xff}}}

	source := newTestSource(
		&Node{Name: "backup", Priority: 2, Reader: backup},
		&Node{Name: "primary", Priority: 1, Reader: broken},
	)
	assert.Equal(t, []string{"primary", "backup"}, source.NodeNames())

	code, err := source.CodeAt(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff}, code)
	assert.Equal(t, 1, broken.calls)
}

func TestCodeAt_AllNodesFail(t *testing.T) {
	source := newTestSource(
		&Node{Name: "n1", Reader: &fakeReader{errs: []error{errors.New("bad request")}}},
		&Node{Name: "n2", Reader: &fakeReader{errs: []error{errors.New("bad request")}}},
	)

	_, err := source.CodeAt(context.Background(), testAddress)
	assert.ErrorIs(t, err, probeerrors.ErrRPCFailed)
}

func TestClose(t *testing.T) {
	r1, r2 := &fakeReader{}, &fakeReader{}
	source := newTestSource(&Node{Name: "n1", Reader: r1}, &Node{Name: "n2", Reader: r2})

	source.Close()
	assert.True(t, r1.closed)
	assert.True(t, r2.closed)
}

func TestNewChainSource_NoNodes(t *testing.T) {
	_, err := NewChainSource(&config.ChainConfig{}, logrus.New())
	assert.ErrorIs(t, err, probeerrors.ErrNoSource)

	_, err = NewChainSource(nil, logrus.New())
	assert.ErrorIs(t, err, probeerrors.ErrNoSource)
}
