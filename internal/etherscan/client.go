// Package etherscan fetches verified contract ABIs from the Etherscan
// v2 API (one endpoint, chain selected by chainid).
package etherscan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
)

const apiBase = "https://api.etherscan.io/v2/api"

// Client talks to the explorer API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	chainID    uint64
}

func NewClient(apiKey string, chainID uint64) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		chainID:    chainID,
	}
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (c *Client) get(ctx context.Context, params url.Values) (json.RawMessage, error) {
	params.Set("chainid", fmt.Sprintf("%d", c.chainID))
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading explorer response: %w", err)
	}
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("invalid explorer response: %w", err)
	}
	if parsed.Status != "1" {
		var msg string
		_ = json.Unmarshal(parsed.Result, &msg)
		if msg == "" {
			msg = parsed.Message
		}
		return nil, fmt.Errorf("explorer error: %s", msg)
	}
	return parsed.Result, nil
}

type sourceEntry struct {
	ABI            string `json:"ABI"`
	Implementation string `json:"Implementation"`
	Proxy          string `json:"Proxy"`
}

// FetchABI downloads the ABI for an address. When the contract is a
// verified proxy, the implementation ABI is fetched and used instead,
// so calls resolve against the logic contract.
func (c *Client) FetchABI(ctx context.Context, addr common.Address) (*gethabi.ABI, error) {
	result, err := c.get(ctx, url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {addr.Hex()},
	})
	if err != nil {
		return nil, err
	}
	var entries []sourceEntry
	if err := json.Unmarshal(result, &entries); err != nil || len(entries) == 0 {
		return nil, fmt.Errorf("unexpected getsourcecode response")
	}
	entry := entries[0]
	if entry.Proxy == "1" && common.IsHexAddress(entry.Implementation) {
		implABI, err := c.fetchRawABI(ctx, common.HexToAddress(entry.Implementation))
		if err == nil {
			return implABI, nil
		}
	}
	if entry.ABI == "" || strings.Contains(entry.ABI, "not verified") {
		return nil, fmt.Errorf("contract %s is not verified", addr.Hex())
	}
	parsed, err := gethabi.JSON(strings.NewReader(entry.ABI))
	if err != nil {
		return nil, fmt.Errorf("invalid ABI for %s: %w", addr.Hex(), err)
	}
	return &parsed, nil
}

func (c *Client) fetchRawABI(ctx context.Context, addr common.Address) (*gethabi.ABI, error) {
	result, err := c.get(ctx, url.Values{
		"module":  {"contract"},
		"action":  {"getabi"},
		"address": {addr.Hex()},
	})
	if err != nil {
		return nil, err
	}
	var abiJSON string
	if err := json.Unmarshal(result, &abiJSON); err != nil {
		return nil, fmt.Errorf("unexpected getabi response")
	}
	parsed, err := gethabi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("invalid ABI for %s: %w", addr.Hex(), err)
	}
	return &parsed, nil
}
