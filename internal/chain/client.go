package chain

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const userAgent = "ethhelper"

// Client is an ethclient with the node-managed account calls that ethclient
// does not expose.
type Client struct {
	*ethclient.Client
	rpc *rpc.Client
	url string
}

// TxArgs is the eth_sendTransaction payload for node-managed accounts.
type TxArgs struct {
	From    common.Address  `json:"from"`
	To      *common.Address `json:"to,omitempty"`
	Gas     hexutil.Uint64  `json:"gas"`
	Value   *hexutil.Big    `json:"value"`
	Nonce   hexutil.Uint64  `json:"nonce"`
	ChainID *hexutil.Big    `json:"chainId,omitempty"`
	Data    hexutil.Bytes   `json:"data,omitempty"`
}

type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "connection failed"
	}
	if e.Err == nil {
		return "connection to " + e.URL + " failed"
	}
	return "connection to " + e.URL + " failed: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Dial connects to url. HTTP endpoints get a client with timeout applied to
// every request; ws and ipc endpoints use the rpc package defaults.
func Dial(ctx context.Context, url string, timeout time.Duration) (*Client, error) {
	var (
		rpcClient *rpc.Client
		err       error
	)
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		httpClient := &http.Client{Timeout: timeout}
		rpcClient, err = rpc.DialHTTPWithClient(url, httpClient)
	} else {
		rpcClient, err = rpc.DialContext(ctx, url)
	}
	if err != nil {
		return nil, &ConnectionError{URL: url, Err: err}
	}
	rpcClient.SetHeader("User-Agent", userAgent)
	return &Client{Client: ethclient.NewClient(rpcClient), rpc: rpcClient, url: url}, nil
}

func (c *Client) URL() string {
	return c.url
}

// Ping verifies the node answers JSON-RPC and returns its chain id.
func (c *Client) Ping(ctx context.Context) (*big.Int, error) {
	id, err := c.ChainID(ctx)
	if err != nil {
		return nil, &ConnectionError{URL: c.url, Err: err}
	}
	return id, nil
}

func (c *Client) IsConnected(ctx context.Context) bool {
	_, err := c.Ping(ctx)
	return err == nil
}

func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	if err := c.rpc.CallContext(ctx, &out, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w", err)
	}
	return out, nil
}

// SendManagedTransaction submits args for signing by the node's own key store.
func (c *Client) SendManagedTransaction(ctx context.Context, args TxArgs) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}
