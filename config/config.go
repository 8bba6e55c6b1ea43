// Package config decodes and validates relayer settings read through viper.
package config

import (
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/supragya/InterchainRelayer/types"
)

// EnvPrefix is prepended to environment overrides, e.g. RELAYER_METRICSADDR.
const EnvPrefix = "RELAYER"

// ChainSettings describes one chain under the chains key.
type ChainSettings struct {
	// Domain may be left out for chains known by name.
	Domain uint32 `mapstructure:"domain"`
	RPCURL string `mapstructure:"rpcurl"`
	// Protocol is "ethereum" (default) or "cardano".
	Protocol string `mapstructure:"protocol"`
}

// SubmitterSettings are the retry timings of every destination queue.
type SubmitterSettings struct {
	Workers        int           `mapstructure:"workers"`
	BackoffBase    time.Duration `mapstructure:"backoffbase"`
	BackoffMax     time.Duration `mapstructure:"backoffmax"`
	ConfirmDelay   time.Duration `mapstructure:"confirmdelay"`
	ConfirmTimeout time.Duration `mapstructure:"confirmtimeout"`
}

// BreakerSettings tune the circuit breaker in front of each destination.
type BreakerSettings struct {
	ConsecutiveFailures uint32        `mapstructure:"consecutivefailures"`
	OpenTimeout         time.Duration `mapstructure:"opentimeout"`
}

// Settings is the relayer configuration.
type Settings struct {
	RelayChains []string                 `mapstructure:"relaychains"`
	Chains      map[string]ChainSettings `mapstructure:"chains"`
	// TransactionGasLimit caps process transactions; zero means no cap.
	TransactionGasLimit        uint64   `mapstructure:"transactiongaslimit"`
	SkipTransactionGasLimitFor []uint32 `mapstructure:"skiptransactiongaslimitfor"`
	// AllowLocalCheckpointSyncers permits file:// storage locations.
	AllowLocalCheckpointSyncers bool `mapstructure:"allowlocalcheckpointsyncers"`
	// Validators maps a validator address to its storage locations, oldest
	// announcement first.
	Validators map[string][]string `mapstructure:"validators"`

	Submitter SubmitterSettings `mapstructure:"submitter"`
	Breaker   BreakerSettings   `mapstructure:"breaker"`

	PollInterval      time.Duration `mapstructure:"pollinterval"`
	TreeCheckInterval time.Duration `mapstructure:"treecheckinterval"`
	BatchSize         int           `mapstructure:"batchsize"`
	MetricsAddr       string        `mapstructure:"metricsaddr"`
}

// SetDefaults registers default values on v. Keys only become visible to
// environment overrides once they have a default or a config entry.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("transactiongaslimit", 0)
	v.SetDefault("allowlocalcheckpointsyncers", false)
	v.SetDefault("submitter.workers", 4)
	v.SetDefault("submitter.backoffbase", 5*time.Second)
	v.SetDefault("submitter.backoffmax", 30*time.Minute)
	v.SetDefault("submitter.confirmdelay", 10*time.Second)
	v.SetDefault("submitter.confirmtimeout", 10*time.Minute)
	v.SetDefault("breaker.consecutivefailures", 5)
	v.SetDefault("breaker.opentimeout", 30*time.Second)
	v.SetDefault("pollinterval", 5*time.Second)
	v.SetDefault("treecheckinterval", time.Minute)
	v.SetDefault("batchsize", 100)
	v.SetDefault("metricsaddr", "")
}

// BindEnv makes RELAYER_* variables override keys of v. Nested keys use an
// underscore, e.g. RELAYER_SUBMITTER_WORKERS.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Decode reads v into Settings without validating them.
func Decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "decoding settings")
	}
	return &s, nil
}

// Load decodes v into validated Settings.
func Load(v *viper.Viper) (*Settings, error) {
	s, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings are complete enough to relay.
func (s *Settings) Validate() error {
	if len(s.RelayChains) < 2 {
		return errors.Errorf("relaychains needs at least 2 chains, got %d", len(s.RelayChains))
	}
	seenName := make(map[string]bool)
	seenDomain := make(map[uint32]string)
	for _, name := range s.RelayChains {
		name = strings.ToLower(name)
		if seenName[name] {
			return errors.Errorf("chain %s listed twice in relaychains", name)
		}
		seenName[name] = true

		d, err := s.Domain(name)
		if err != nil {
			return err
		}
		if other, ok := seenDomain[d.ID]; ok {
			return errors.Errorf("chains %s and %s share domain %d", other, name, d.ID)
		}
		seenDomain[d.ID] = name
		if s.Chains[name].RPCURL == "" {
			return errors.Errorf("chain %s has no rpcurl", name)
		}
	}
	for addr := range s.Validators {
		if !common.IsHexAddress(addr) {
			return errors.Errorf("validator %q is not an address", addr)
		}
	}
	if s.Submitter.Workers < 1 {
		return errors.New("submitter.workers must be at least 1")
	}
	if s.Submitter.BackoffBase <= 0 || s.Submitter.BackoffMax < s.Submitter.BackoffBase {
		return errors.Errorf("invalid submitter backoff %s..%s", s.Submitter.BackoffBase, s.Submitter.BackoffMax)
	}
	if s.Submitter.ConfirmDelay < 0 || s.Submitter.ConfirmTimeout < 0 {
		return errors.Errorf("invalid submitter confirm timings %s/%s", s.Submitter.ConfirmDelay, s.Submitter.ConfirmTimeout)
	}
	if s.PollInterval <= 0 {
		return errors.Errorf("pollinterval must be positive, got %s", s.PollInterval)
	}
	if s.TreeCheckInterval <= 0 {
		return errors.Errorf("treecheckinterval must be positive, got %s", s.TreeCheckInterval)
	}
	if s.BatchSize < 1 {
		return errors.New("batchsize must be at least 1")
	}
	return nil
}

// Domain resolves the relay chain name to a domain. Chains with an explicit
// domain id override the compiled-in registry.
func (s *Settings) Domain(name string) (types.Domain, error) {
	name = strings.ToLower(name)
	chain, ok := s.Chains[name]
	if !ok {
		return types.Domain{}, errors.Errorf("relay chain %s has no chains entry", name)
	}
	protocol, err := parseProtocol(chain.Protocol)
	if err != nil {
		return types.Domain{}, errors.Wrapf(err, "chain %s", name)
	}
	if chain.Domain == 0 {
		known, ok := types.LookupDomainByName(name)
		if !ok {
			return types.Domain{}, errors.Errorf("chain %s is not a known domain and has no domain id", name)
		}
		if chain.Protocol == "" {
			return known, nil
		}
		known.Protocol = protocol
		return known, nil
	}
	return types.Domain{ID: chain.Domain, Name: name, Protocol: protocol}, nil
}

func parseProtocol(p string) (types.Protocol, error) {
	switch strings.ToLower(p) {
	case "", "ethereum":
		return types.ProtocolEthereum, nil
	case "cardano":
		return types.ProtocolCardano, nil
	default:
		return 0, errors.Errorf("unknown protocol %q", p)
	}
}

// SkipsGasLimit reports whether domain is exempt from TransactionGasLimit.
func (s *Settings) SkipsGasLimit(domain uint32) bool {
	for _, d := range s.SkipTransactionGasLimitFor {
		if d == domain {
			return true
		}
	}
	return false
}

// ValidatorLocations returns storage locations keyed by validator address.
func (s *Settings) ValidatorLocations() map[common.Address][]string {
	out := make(map[common.Address][]string, len(s.Validators))
	for addr, locations := range s.Validators {
		out[common.HexToAddress(addr)] = append([]string(nil), locations...)
	}
	return out
}

// SortedRelayChains returns the relay chain names lowercased and sorted.
func (s *Settings) SortedRelayChains() []string {
	out := make([]string, len(s.RelayChains))
	for i, name := range s.RelayChains {
		out[i] = strings.ToLower(name)
	}
	sort.Strings(out)
	return out
}
