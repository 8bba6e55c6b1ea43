// Package rpc talks to a chain-side agent over HTTP JSON. One Client serves
// as mailbox, security module reader and origin indexer for its domain.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/supragya/InterchainRelayer/accumulator"
	"github.com/supragya/InterchainRelayer/chains"
	"github.com/supragya/InterchainRelayer/types"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	domain  types.Domain
	baseURL string
	http    *http.Client
}

var (
	_ chains.Mailbox                  = (*Client)(nil)
	_ chains.InterchainSecurityModule = (*Client)(nil)
	_ chains.OriginIndexer            = (*Client)(nil)
)

func NewClient(domain types.Domain, baseURL string) *Client {
	return &Client{
		domain:  domain,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) Domain() types.Domain { return c.domain }

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) call(ctx context.Context, method, path string, req, resp interface{}) error {
	var body *bytes.Reader
	if req != nil {
		encoded, err := json.Marshal(req)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer res.Body.Close()

	raw, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return errors.Wrapf(err, "reading %s response", path)
	}
	if res.StatusCode/100 != 2 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return errors.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, res.StatusCode)
		}
		return errors.Errorf("%s %s: status %d", method, path, res.StatusCode)
	}
	if resp == nil {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(raw, resp), "decoding %s response", path)
}

type deliveredRequest struct {
	ID common.Hash `json:"id"`
}

type deliveredResponse struct {
	Delivered bool `json:"delivered"`
}

func (c *Client) Delivered(ctx context.Context, id common.Hash) (bool, error) {
	var resp deliveredResponse
	if err := c.call(ctx, http.MethodPost, "/delivered", deliveredRequest{ID: id}, &resp); err != nil {
		return false, err
	}
	return resp.Delivered, nil
}

type recipientIsmRequest struct {
	Recipient common.Hash `json:"recipient"`
}

type ismResponse struct {
	Ism common.Hash `json:"ism"`
}

func (c *Client) RecipientIsm(ctx context.Context, recipient common.Hash) (common.Hash, error) {
	var resp ismResponse
	if err := c.call(ctx, http.MethodPost, "/recipient-ism", recipientIsmRequest{Recipient: recipient}, &resp); err != nil {
		return common.Hash{}, err
	}
	return resp.Ism, nil
}

type processRequest struct {
	Message  hexutil.Bytes `json:"message"`
	Metadata hexutil.Bytes `json:"metadata"`
	GasLimit *hexutil.Big  `json:"gas_limit,omitempty"`
}

type processResponse struct {
	TxID     common.Hash  `json:"tx_id"`
	Executed bool         `json:"executed"`
	GasUsed  *hexutil.Big `json:"gas_used"`
	GasPrice *hexutil.Big `json:"gas_price"`
}

func (c *Client) Process(ctx context.Context, msg *types.Message, metadata []byte, gasLimit *big.Int) (chains.TxOutcome, error) {
	req := processRequest{Message: msg.Encode(), Metadata: metadata}
	if gasLimit != nil {
		req.GasLimit = (*hexutil.Big)(gasLimit)
	}
	var resp processResponse
	if err := c.call(ctx, http.MethodPost, "/process", req, &resp); err != nil {
		return chains.TxOutcome{}, err
	}
	return chains.TxOutcome{
		TxID:     resp.TxID,
		Executed: resp.Executed,
		GasUsed:  resp.GasUsed.ToInt(),
		GasPrice: resp.GasPrice.ToInt(),
	}, nil
}

type estimateResponse struct {
	GasLimit   *hexutil.Big `json:"gas_limit"`
	GasPrice   *hexutil.Big `json:"gas_price"`
	L2GasLimit *hexutil.Big `json:"l2_gas_limit,omitempty"`
}

func (c *Client) EstimateCost(ctx context.Context, msg *types.Message, metadata []byte) (chains.CostEstimate, error) {
	var resp estimateResponse
	req := processRequest{Message: msg.Encode(), Metadata: metadata}
	if err := c.call(ctx, http.MethodPost, "/process/estimate", req, &resp); err != nil {
		return chains.CostEstimate{}, err
	}
	if resp.GasLimit == nil {
		return chains.CostEstimate{}, errors.New("estimate response without gas limit")
	}
	est := chains.CostEstimate{GasLimit: resp.GasLimit.ToInt(), GasPrice: resp.GasPrice.ToInt()}
	if resp.L2GasLimit != nil {
		est.L2GasLimit = resp.L2GasLimit.ToInt()
	}
	return est, nil
}

type moduleTypeResponse struct {
	ModuleType uint8 `json:"module_type"`
}

func (c *Client) ModuleType(ctx context.Context, ism common.Hash) (chains.ModuleType, error) {
	var resp moduleTypeResponse
	if err := c.call(ctx, http.MethodPost, "/ism/module-type", ismResponse{Ism: ism}, &resp); err != nil {
		return chains.ModuleUnused, err
	}
	return chains.ModuleType(resp.ModuleType), nil
}

type validatorsRequest struct {
	Ism     common.Hash   `json:"ism"`
	Message hexutil.Bytes `json:"message"`
}

type validatorsResponse struct {
	Validators []common.Address `json:"validators"`
	Threshold  uint8            `json:"threshold"`
}

func (c *Client) ValidatorsAndThreshold(ctx context.Context, ism common.Hash, msg *types.Message) ([]common.Address, uint8, error) {
	var resp validatorsResponse
	req := validatorsRequest{Ism: ism, Message: msg.Encode()}
	if err := c.call(ctx, http.MethodPost, "/ism/validators", req, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Validators, resp.Threshold, nil
}

type messagesRequest struct {
	FromNonce uint32 `json:"from_nonce"`
	Limit     int    `json:"limit"`
}

type messagesResponse struct {
	Messages []hexutil.Bytes `json:"messages"`
}

func (c *Client) FetchMessages(ctx context.Context, fromNonce uint32, limit int) ([]types.Message, error) {
	var resp messagesResponse
	if err := c.call(ctx, http.MethodPost, "/messages", messagesRequest{FromNonce: fromNonce, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	out := make([]types.Message, 0, len(resp.Messages))
	for i, raw := range resp.Messages {
		msg, err := types.DecodeMessage(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding message %d of batch from nonce %d", i, fromNonce)
		}
		if msg.Origin != c.domain.ID {
			return nil, errors.Errorf("message %d from origin %d returned by %s indexer", msg.Nonce, msg.Origin, c.domain)
		}
		out = append(out, *msg)
	}
	return out, nil
}

type treeResponse struct {
	Branch []common.Hash `json:"branch"`
	Count  uint64        `json:"count"`
	Root   common.Hash   `json:"root"`
}

func (c *Client) Tree(ctx context.Context) (accumulator.IncrementalMerkle, common.Hash, error) {
	var resp treeResponse
	if err := c.call(ctx, http.MethodGet, "/merkle-tree", nil, &resp); err != nil {
		return accumulator.IncrementalMerkle{}, common.Hash{}, err
	}
	if len(resp.Branch) != accumulator.TreeDepth {
		return accumulator.IncrementalMerkle{}, common.Hash{}, errors.Errorf("merkle tree branch has %d nodes, want %d", len(resp.Branch), accumulator.TreeDepth)
	}
	var branch [accumulator.TreeDepth]common.Hash
	copy(branch[:], resp.Branch)
	return accumulator.New(c.domain.Family(), branch, resp.Count), resp.Root, nil
}
