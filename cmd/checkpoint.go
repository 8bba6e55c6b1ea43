/*
Copyright © 2020 Supragya Raj <supragyaraj@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/supragya/InterchainRelayer/checkpoint"
	"github.com/supragya/InterchainRelayer/config"
	"github.com/supragya/InterchainRelayer/keys"
	"github.com/supragya/InterchainRelayer/types"
)

var (
	cpValidators             []string
	cpThreshold              int
	cpIndex                  uint32
	cpDestination, cpOrigin  uint32
	cpKeyFile, cpLocation    string
	cpMailbox, cpRoot, cpMsg string
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and write validator checkpoints",
}

// checkpointFetchCmd prints the quorum checkpoint a validator set has signed
var checkpointFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Print the quorum checkpoint a validator set signed at an index",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Decode(viper.GetViper())
		if err != nil {
			return err
		}
		validators := make([]common.Address, 0, len(cpValidators))
		for _, v := range cpValidators {
			if !common.IsHexAddress(v) {
				return errors.Errorf("validator %q is not an address", v)
			}
			validators = append(validators, common.HexToAddress(v))
		}

		ctx := context.Background()
		builder := checkpoint.NewSyncerBuilder(checkpoint.StaticAnnounce(settings.ValidatorLocations()),
			settings.AllowLocalCheckpointSyncers)
		syncer, err := builder.Build(ctx, validators)
		if err != nil {
			return err
		}
		quorum, err := syncer.FetchCheckpoint(ctx, types.HashFamilyOf(cpDestination), validators, cpThreshold, cpIndex)
		if err != nil {
			return err
		}
		if quorum == nil {
			log.Info("No quorum checkpoint at index ", cpIndex)
			return nil
		}
		out, err := json.MarshalIndent(quorum, "", "    ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

// checkpointSignCmd signs a checkpoint as a validator and publishes it
var checkpointSignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a checkpoint with a validator keyfile and write it to a storage location",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := keys.LoadKeyFile(cpKeyFile)
		if err != nil {
			return err
		}
		syncer, err := checkpoint.ParseLocation(cpLocation, true)
		if err != nil {
			return err
		}

		family := types.HashFamilyOf(cpDestination)
		signed, err := types.SignCheckpoint(key, family, types.CheckpointWithMessageID{
			Checkpoint: types.Checkpoint{
				MailboxAddress: common.HexToHash(cpMailbox),
				MailboxDomain:  cpOrigin,
				Root:           common.HexToHash(cpRoot),
				Index:          cpIndex,
			},
			MessageID: common.HexToHash(cpMsg),
		})
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := syncer.WriteCheckpoint(ctx, family, signed); err != nil {
			return err
		}
		latest, ok, err := syncer.LatestIndex(ctx)
		if err != nil {
			return err
		}
		if !ok || latest < cpIndex {
			if err := syncer.UpdateLatestIndex(ctx, cpIndex); err != nil {
				return err
			}
		}
		log.Info("Written checkpoint ", cpIndex, " to ", cpLocation)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointFetchCmd, checkpointSignCmd)

	checkpointCmd.PersistentFlags().Uint32VarP(&cpIndex, "index", "i", 0, "Checkpoint index")
	checkpointCmd.PersistentFlags().Uint32VarP(&cpDestination, "destination", "d", 0, "Destination domain, selects the hash family")

	checkpointFetchCmd.Flags().StringSliceVarP(&cpValidators, "validators", "v", nil, "Validator addresses in security module order")
	checkpointFetchCmd.Flags().IntVarP(&cpThreshold, "threshold", "t", 1, "Signatures needed for quorum")

	checkpointSignCmd.Flags().StringVarP(&cpKeyFile, "keyfile", "k", "", "Validator keyfile")
	checkpointSignCmd.Flags().StringVarP(&cpLocation, "location", "l", "", "Storage location, file:// or redis://")
	checkpointSignCmd.Flags().Uint32VarP(&cpOrigin, "origin", "o", 0, "Origin domain of the mailbox")
	checkpointSignCmd.Flags().StringVar(&cpMailbox, "mailbox", "", "Origin mailbox address")
	checkpointSignCmd.Flags().StringVar(&cpRoot, "root", "", "Merkle root")
	checkpointSignCmd.Flags().StringVar(&cpMsg, "messageid", "", "Id of the message at index")
}
