package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supragya/InterchainRelayer/accumulator"
	"github.com/supragya/InterchainRelayer/chains"
	"github.com/supragya/InterchainRelayer/types"
)

func testDomain() types.Domain {
	d, _ := types.LookupDomain(13371)
	return d
}

func testMessage(nonce uint32) *types.Message {
	return &types.Message{
		Nonce:       nonce,
		Origin:      13371,
		Sender:      common.HexToHash("0x01"),
		Destination: 13372,
		Recipient:   common.HexToHash("0x02"),
		Body:        []byte("hello"),
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newAgent(t *testing.T) (*Client, *http.ServeMux) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(testDomain(), srv.URL+"/"), mux
}

func TestClient_Delivered(t *testing.T) {
	client, mux := newAgent(t)
	delivered := common.HexToHash("0xd0")
	mux.HandleFunc("/delivered", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req deliveredRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, deliveredResponse{Delivered: req.ID == delivered})
	})

	ok, err := client.Delivered(context.Background(), delivered)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Delivered(context.Background(), common.HexToHash("0xd1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_ProcessAndEstimate(t *testing.T) {
	client, mux := newAgent(t)
	msg := testMessage(3)

	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		var req processRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, hexutil.Bytes(msg.Encode()), req.Message)
		assert.Equal(t, hexutil.Bytes{0xaa}, req.Metadata)
		assert.Equal(t, int64(500000), req.GasLimit.ToInt().Int64())
		writeJSON(w, processResponse{
			TxID:     common.HexToHash("0x7a"),
			Executed: true,
			GasUsed:  (*hexutil.Big)(big.NewInt(21000)),
			GasPrice: (*hexutil.Big)(big.NewInt(7)),
		})
	})
	mux.HandleFunc("/process/estimate", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, estimateResponse{
			GasLimit: (*hexutil.Big)(big.NewInt(90000)),
			GasPrice: (*hexutil.Big)(big.NewInt(3)),
		})
	})

	outcome, err := client.Process(context.Background(), msg, []byte{0xaa}, big.NewInt(500000))
	require.NoError(t, err)
	assert.True(t, outcome.Executed)
	assert.Equal(t, common.HexToHash("0x7a"), outcome.TxID)
	assert.Equal(t, int64(21000), outcome.GasUsed.Int64())

	est, err := client.EstimateCost(context.Background(), msg, []byte{0xaa})
	require.NoError(t, err)
	assert.Equal(t, int64(90000), est.GasLimit.Int64())
	assert.Nil(t, est.L2GasLimit)
}

func TestClient_Ism(t *testing.T) {
	client, mux := newAgent(t)
	ism := common.HexToHash("0x15")
	validators := []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")}

	mux.HandleFunc("/recipient-ism", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ismResponse{Ism: ism})
	})
	mux.HandleFunc("/ism/module-type", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, moduleTypeResponse{ModuleType: uint8(chains.ModuleMessageIDMultisig)})
	})
	mux.HandleFunc("/ism/validators", func(w http.ResponseWriter, r *http.Request) {
		var req validatorsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ism, req.Ism)
		writeJSON(w, validatorsResponse{Validators: validators, Threshold: 2})
	})

	got, err := client.RecipientIsm(context.Background(), common.HexToHash("0x02"))
	require.NoError(t, err)
	assert.Equal(t, ism, got)

	mt, err := client.ModuleType(context.Background(), ism)
	require.NoError(t, err)
	assert.Equal(t, chains.ModuleMessageIDMultisig, mt)

	vs, threshold, err := client.ValidatorsAndThreshold(context.Background(), ism, testMessage(0))
	require.NoError(t, err)
	assert.Equal(t, validators, vs)
	assert.Equal(t, uint8(2), threshold)
}

func TestClient_FetchMessages(t *testing.T) {
	client, mux := newAgent(t)
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		var resp messagesResponse
		for n := req.FromNonce; n < req.FromNonce+uint32(req.Limit); n++ {
			resp.Messages = append(resp.Messages, testMessage(n).Encode())
		}
		writeJSON(w, resp)
	})

	msgs, err := client.FetchMessages(context.Background(), 4, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, uint32(4), msgs[0].Nonce)
	assert.Equal(t, uint32(6), msgs[2].Nonce)
	assert.Equal(t, []byte("hello"), msgs[1].Body)
}

func TestClient_FetchMessagesRejectsForeignOrigin(t *testing.T) {
	client, mux := newAgent(t)
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		m := testMessage(0)
		m.Origin = 13373
		writeJSON(w, messagesResponse{Messages: []hexutil.Bytes{m.Encode()}})
	})

	_, err := client.FetchMessages(context.Background(), 0, 1)
	require.Error(t, err)
}

func TestClient_Tree(t *testing.T) {
	client, mux := newAgent(t)
	tree := accumulator.Empty(types.Keccak256)
	for i := 0; i < 3; i++ {
		tree, _ = tree.Ingest(types.Keccak256.Hash([]byte{byte(i)}))
	}
	branch := tree.Branch()

	mux.HandleFunc("/merkle-tree", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, treeResponse{Branch: branch[:], Count: tree.Count(), Root: tree.Root()})
	})

	got, root, err := client.Tree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tree.Root(), root)
	assert.Equal(t, root, got.Root())
	assert.Equal(t, uint64(3), got.Count())
}

func TestClient_ErrorStatus(t *testing.T) {
	client, mux := newAgent(t)
	mux.HandleFunc("/delivered", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		writeJSON(w, apiError{Error: "node unreachable"})
	})
	mux.HandleFunc("/merkle-tree", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, treeResponse{Branch: make([]common.Hash, 3)})
	})

	_, err := client.Delivered(context.Background(), common.Hash{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node unreachable")

	_, _, err = client.Tree(context.Background())
	require.Error(t, err)
}
