// Package keys reads and writes validator signing keys.
package keys

import (
	"crypto/ecdsa"
	"encoding/json"
	"io/ioutil"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// KeyType is the only key kind validators sign checkpoints with.
const KeyType = "secp256k1"

type keyData struct {
	KeyType          string         `json:"keytype"`
	Address          common.Address `json:"address"`
	PrivateKeyString string         `json:"privatekey"`
	PublicKeyString  string         `json:"publickey"`
}

// GenerateKeyFile writes a fresh validator key to fileLocation and returns
// its address.
func GenerateKeyFile(fileLocation string) (common.Address, error) {
	log.Info("Generating ", KeyType, " KeyPair")

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, errors.Wrap(err, "generating key")
	}
	key := keyData{
		KeyType:          KeyType,
		Address:          crypto.PubkeyToAddress(privateKey.PublicKey),
		PrivateKeyString: hexutil.Encode(crypto.FromECDSA(privateKey)),
		PublicKeyString:  hexutil.Encode(crypto.FromECDSAPub(&privateKey.PublicKey)),
	}
	log.Info("Validator address after generating KeyPair: ", key.Address.Hex())

	encodedJSON, err := json.MarshalIndent(&key, "", "    ")
	if err != nil {
		return common.Address{}, errors.Wrap(err, "encoding keyfile")
	}
	if err := ioutil.WriteFile(fileLocation, encodedJSON, 0600); err != nil {
		return common.Address{}, errors.Wrap(err, "writing keyfile")
	}

	log.Info("Successfully written keyfile ", fileLocation)
	return key.Address, nil
}

// LoadKeyFile reads a validator key and checks it is consistent with the
// address and public key stored next to it.
func LoadKeyFile(fileLocation string) (*ecdsa.PrivateKey, error) {
	raw, err := ioutil.ReadFile(fileLocation)
	if err != nil {
		return nil, errors.Wrap(err, "reading keyfile")
	}
	var key keyData
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, errors.Wrap(err, "decoding keyfile")
	}
	if key.KeyType != KeyType {
		return nil, errors.Errorf("keyfile holds %q key, want %s", key.KeyType, KeyType)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(key.PrivateKeyString, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "decoding private key")
	}
	if addr := crypto.PubkeyToAddress(privateKey.PublicKey); addr != key.Address {
		return nil, errors.Errorf("keyfile address %s does not match private key address %s", key.Address.Hex(), addr.Hex())
	}
	if pub := hexutil.Encode(crypto.FromECDSAPub(&privateKey.PublicKey)); !strings.EqualFold(pub, key.PublicKeyString) {
		return nil, errors.New("keyfile public key does not match private key")
	}
	return privateKey, nil
}

// VerifyKeyFile reports the address of a valid keyfile.
func VerifyKeyFile(fileLocation string) (common.Address, error) {
	privateKey, err := LoadKeyFile(fileLocation)
	if err != nil {
		return common.Address{}, err
	}
	addr := crypto.PubkeyToAddress(privateKey.PublicKey)
	log.Info("Keyfile ", fileLocation, " is valid for validator ", addr.Hex())
	return addr, nil
}
