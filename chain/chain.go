package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/safwentrabelsi/voce/config"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "chain")

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Signer signs transactions on behalf of an account.
type Signer interface {
	Address() string
	PublicKeyHex() string
	Sign(message []byte) []byte
}

// NodeInterface is the part of the node API the contract wrappers depend on.
type NodeInterface interface {
	View(ctx context.Context, req ViewRequest) ([]json.RawMessage, error)
	SignAndSubmit(ctx context.Context, signer Signer, payload EntryFunctionPayload) (*Transaction, error)
}

type Client struct {
	url           string
	client        HttpClient
	retryAttempts uint
	retryDelay    time.Duration
	maxGasAmount  uint64
	gasUnitPrice  uint64
	expiration    time.Duration
	waitTimeout   time.Duration
	pollInterval  time.Duration
	now           func() time.Time
}

func NewClient(cfg *config.ChainConfig) *Client {
	return &Client{
		url: strings.TrimRight(cfg.GetURL(), "/"),
		client: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
		retryAttempts: cfg.GetRetryAttempts(),
		retryDelay:    200 * time.Millisecond,
		maxGasAmount:  cfg.GetMaxGasAmount(),
		gasUnitPrice:  cfg.GetGasUnitPrice(),
		expiration:    cfg.GetExpiration(),
		waitTimeout:   cfg.GetWaitTimeout(),
		pollInterval:  time.Second,
		now:           time.Now,
	}
}

func (c *Client) GetLedgerInfo(ctx context.Context) (*LedgerInfo, error) {
	var info LedgerInfo
	if err := c.getJSON(ctx, "/v1", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) GetAccount(ctx context.Context, address string) (*AccountInfo, error) {
	var account AccountInfo
	if err := c.getJSON(ctx, "/v1/accounts/"+address, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccountBalance returns the native coin balance of an account, in octas.
func (c *Client) GetAccountBalance(ctx context.Context, address string) (uint64, error) {
	values, err := c.View(ctx, ViewRequest{
		Function:      "0x1::coin::balance",
		TypeArguments: []string{"0x1::aptos_coin::AptosCoin"},
		Arguments:     []any{address},
	})
	if err != nil {
		return 0, err
	}
	raw, err := First(values)
	if err != nil {
		return 0, err
	}
	return DecodeU64(raw)
}

// View executes a view function and returns its raw return values.
func (c *Client) View(ctx context.Context, req ViewRequest) ([]json.RawMessage, error) {
	if req.TypeArguments == nil {
		req.TypeArguments = []string{}
	}
	if req.Arguments == nil {
		req.Arguments = []any{}
	}

	body, err := c.executeRequest(ctx, http.MethodPost, "/v1/view", req, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("view %s: %w", req.Function, err)
	}

	var values []json.RawMessage
	if err := json.Unmarshal(body, &values); err != nil {
		return nil, fmt.Errorf("view %s: error decoding response: %w", req.Function, err)
	}
	return values, nil
}

func (c *Client) GetTransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	var tx Transaction
	if err := c.getJSON(ctx, "/v1/transactions/by_hash/"+hash, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.executeRequest(ctx, http.MethodGet, path, nil, http.StatusOK)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error decoding %s response: %w", path, err)
	}
	return nil
}

// executeRequest sends the request and returns the response body. Network errors,
// 429 and 5xx responses are retried; any other unexpected status is returned as is.
func (c *Client) executeRequest(ctx context.Context, method, path string, payload any, expected ...int) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error encoding request: %w", err)
		}
	}

	return retry.DoWithData(
		func() ([]byte, error) {
			var body io.Reader
			if encoded != nil {
				body = bytes.NewReader(encoded)
			}
			req, err := http.NewRequestWithContext(ctx, method, c.url+path, body)
			if err != nil {
				return nil, retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")
			if encoded != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := c.client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, err
			}

			for _, status := range expected {
				if resp.StatusCode == status {
					return data, nil
				}
			}

			apiErr := parseAPIError(resp.StatusCode, data)
			if apiErr.Transient() {
				return nil, apiErr
			}
			return nil, retry.Unrecoverable(apiErr)
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Errorf("request %s %s failed (attempt %d): %v, retrying...", method, path, n+1, err)
		}),
	)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
