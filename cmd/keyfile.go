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
	"github.com/spf13/cobra"

	"github.com/supragya/InterchainRelayer/keys"
)

var fileLocation string
var isVerify bool

// keyFileCmd represents the keyfile command
var keyFileCmd = &cobra.Command{
	Use:   "keyfile",
	Short: "Generate or verify a validator keyfile",
	Long:  `Generate a secp256k1 keyfile used to sign checkpoints, or verify an existing one with --verify`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runKeyFile(fileLocation, isVerify)
	},
}

func runKeyFile(location string, verify bool) error {
	if verify {
		_, err := keys.VerifyKeyFile(location)
		return err
	}
	_, err := keys.GenerateKeyFile(location)
	return err
}

func init() {
	rootCmd.AddCommand(keyFileCmd)
	keyFileCmd.Flags().StringVarP(&fileLocation, "filelocation", "f", "", "File to generate/validate")
	keyFileCmd.Flags().BoolVarP(&isVerify, "verify", "v", false, "Verify the given KeyFile instead of generating a new one")
	keyFileCmd.MarkFlagRequired("filelocation")
}
