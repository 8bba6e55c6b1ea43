package checkpoint

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/supragya/InterchainRelayer/types"
)

// LocalStorage keeps checkpoints as JSON files in a directory.
type LocalStorage struct {
	path string
}

func NewLocalStorage(path string) *LocalStorage {
	return &LocalStorage{path: path}
}

func (l *LocalStorage) String() string { return "file://" + l.path }

func (l *LocalStorage) LatestIndex(ctx context.Context) (uint32, bool, error) {
	raw, err := ioutil.ReadFile(filepath.Join(l.path, indexKey))
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "reading latest index")
	}
	var index uint32
	if err := json.Unmarshal(raw, &index); err != nil {
		return 0, false, errors.Wrap(err, "decoding latest index")
	}
	return index, true, nil
}

func (l *LocalStorage) FetchCheckpoint(ctx context.Context, family types.HashFamily, index uint32) (*types.SignedCheckpointWithMessageID, error) {
	raw, err := ioutil.ReadFile(filepath.Join(l.path, checkpointKey(family, index)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading checkpoint %d", index)
	}
	var signed types.SignedCheckpointWithMessageID
	if err := json.Unmarshal(raw, &signed); err != nil {
		return nil, errors.Wrapf(err, "decoding checkpoint %d", index)
	}
	return &signed, nil
}

func (l *LocalStorage) WriteCheckpoint(ctx context.Context, family types.HashFamily, signed *types.SignedCheckpointWithMessageID) error {
	if err := os.MkdirAll(l.path, 0755); err != nil {
		return errors.Wrap(err, "creating checkpoint directory")
	}
	encoded, err := json.MarshalIndent(signed, "", "    ")
	if err != nil {
		return err
	}
	name := checkpointKey(family, signed.Value.Checkpoint.Index)
	return errors.Wrapf(ioutil.WriteFile(filepath.Join(l.path, name), encoded, 0644), "writing %s", name)
}

func (l *LocalStorage) UpdateLatestIndex(ctx context.Context, index uint32) error {
	if err := os.MkdirAll(l.path, 0755); err != nil {
		return errors.Wrap(err, "creating checkpoint directory")
	}
	encoded, err := json.Marshal(index)
	if err != nil {
		return err
	}
	return errors.Wrap(ioutil.WriteFile(filepath.Join(l.path, indexKey), encoded, 0644), "writing latest index")
}
