package metadata

import (
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/supragya/InterchainRelayer/checkpoint"
	"github.com/supragya/InterchainRelayer/types"
)

var testMailbox = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000a11b0")

func testMessage(nonce uint32, origin, destination uint32) *types.Message {
	return &types.Message{
		Nonce:       nonce,
		Origin:      origin,
		Sender:      common.HexToHash("0x0ca1"),
		Destination: destination,
		Recipient:   common.HexToHash("0x0ef1"),
		Body:        []byte{byte(nonce)},
	}
}

// validators is a set of validator keys publishing to local directories.
type validators struct {
	keys      []*ecdsa.PrivateKey
	addresses []common.Address
	stores    []*checkpoint.LocalStorage
	multisig  *checkpoint.MultisigCheckpointSyncer
}

func newValidators(t *testing.T, n int) *validators {
	t.Helper()
	vs := &validators{}
	syncers := map[common.Address]checkpoint.CheckpointSyncer{}
	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		addr := crypto.PubkeyToAddress(key.PublicKey)
		store := checkpoint.NewLocalStorage(t.TempDir())
		vs.keys = append(vs.keys, key)
		vs.addresses = append(vs.addresses, addr)
		vs.stores = append(vs.stores, store)
		syncers[addr] = store
	}
	vs.multisig = checkpoint.NewMultisigCheckpointSyncer(syncers)
	return vs
}

// publish has validator i sign a checkpoint and write it to its store.
func (vs *validators) publish(t *testing.T, i int, family types.HashFamily, domain, index uint32, root, id common.Hash) *types.SignedCheckpointWithMessageID {
	t.Helper()
	ctx := context.Background()
	signed, err := types.SignCheckpoint(vs.keys[i], family, types.CheckpointWithMessageID{
		Checkpoint: types.Checkpoint{
			MailboxAddress: testMailbox,
			MailboxDomain:  domain,
			Root:           root,
			Index:          index,
		},
		MessageID: id,
	})
	require.NoError(t, err)
	require.NoError(t, vs.stores[i].WriteCheckpoint(ctx, family, signed))
	require.NoError(t, vs.stores[i].UpdateLatestIndex(ctx, index))
	return signed
}
