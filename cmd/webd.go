/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

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
	"log"
	"log/slog"

	"github.com/fitzone/zoned/common"
	"github.com/fitzone/zoned/daemon/webd"
	"github.com/fitzone/zoned/params"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// webdCmd represents the serve command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the webserver",
	Long: `Serves the athlete API: devices push fixes, apps start and stop
activities, read live snapshots over websocket, and fetch stats, zones and maps.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("webd.Run")

		config := webDaemonConfigFromViper()
		server, err := webd.NewWebDaemon(config)
		if err != nil {
			log.Fatalln(err)
		}
		if err := server.Start(); err != nil {
			log.Fatalln(err)
		}
		select {
		case sig := <-common.Interrupted():
			slog.Warn("Received signal, stopping", "signal", sig)
			server.Stop()
		case <-server.Done():
		}
		server.Wait()
	},
}

func webDaemonConfigFromViper() *params.WebDaemonConfig {
	config := params.DefaultWebDaemonConfig()
	config.Address = viper.GetString("webd.address")
	config.Network = viper.GetString("webd.network")
	config.AthleteIdleTTL = viper.GetDuration("webd.idle-ttl")
	config.Rgeo = viper.GetBool("webd.rgeo")

	config.Store.DataDir = viper.GetString("datadir")
	config.Store.Driver = params.StoreDriver(viper.GetString("store.driver"))

	config.Recommend.Endpoint = viper.GetString("recommend.endpoint")

	config.Influx.URL = viper.GetString("influx.url")
	config.Influx.Token = viper.GetString("influx.token")
	config.Influx.Org = viper.GetString("influx.org")
	config.Influx.Bucket = viper.GetString("influx.bucket")

	config.Archive.Bucket = viper.GetString("archive.bucket")
	config.Archive.Region = viper.GetString("archive.region")
	config.Archive.Prefix = viper.GetString("archive.prefix")
	return config
}

func init() {
	rootCmd.AddCommand(webdCmd)

	defaults := params.DefaultWebDaemonConfig()

	pFlags := webdCmd.PersistentFlags()
	pFlags.String("address", defaults.Address, "HTTP address to listen on")
	pFlags.String("network", defaults.Network, "Network to listen on: tcp, tcp4, tcp6, unix")
	pFlags.Duration("idle-ttl", defaults.AthleteIdleTTL, "Tear down an athlete's live state after this long without traffic")
	pFlags.Bool("rgeo", false, "Reverse geocode activity start places")
	bindFlags(pFlags, "webd", "address", "network", "idle-ttl", "rgeo")

	pFlags.String("store", string(defaults.Store.Driver), "Activity store driver: bolt or sqlite")
	_ = viper.BindPFlag("store.driver", pFlags.Lookup("store"))

	pFlags.String("recommend-endpoint", "", "Remote recommendation service URL; empty ranks locally")
	_ = viper.BindPFlag("recommend.endpoint", pFlags.Lookup("recommend-endpoint"))

	pFlags.String("influx-url", "", "InfluxDB URL for activity export; empty disables")
	pFlags.String("influx-token", "", "InfluxDB token")
	pFlags.String("influx-org", "", "InfluxDB organization")
	pFlags.String("influx-bucket", "zoned", "InfluxDB bucket")
	bindPrefixed(pFlags, "influx", "url", "token", "org", "bucket")

	pFlags.String("archive-bucket", "", "S3 bucket to archive finished activities to; empty disables")
	pFlags.String("archive-region", "us-east-1", "S3 region")
	pFlags.String("archive-prefix", "activities", "S3 key prefix")
	bindPrefixed(pFlags, "archive", "bucket", "region", "prefix")
}

// bindFlags binds each named flag to viper key section.name.
func bindFlags(flags *pflag.FlagSet, section string, names ...string) {
	for _, name := range names {
		_ = viper.BindPFlag(section+"."+name, flags.Lookup(name))
	}
}

// bindPrefixed binds flag section-name to viper key section.name.
func bindPrefixed(flags *pflag.FlagSet, section string, names ...string) {
	for _, name := range names {
		_ = viper.BindPFlag(section+"."+name, flags.Lookup(section+"-"+name))
	}
}
