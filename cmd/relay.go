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
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/supragya/InterchainRelayer/config"
	"github.com/supragya/InterchainRelayer/relayer"
	"github.com/supragya/InterchainRelayer/submitter"
)

const metricsNamespace = "relayer"

// relayCmd represents the relay command
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay messages between the configured chains",
	Long:  `Relay messages between the configured chains until interrupted or until a critical failure`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		log.Info("Relaying between ", settings.SortedRelayChains())

		r, err := relayer.New(settings, submitter.PrometheusMetrics(metricsNamespace))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := r.Run(ctx); err != nil {
			log.Error("Relayer stopped: ", err)
			return err
		}
		log.Info("Relayer stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
}
