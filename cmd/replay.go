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
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fitzone/zoned/common"
	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/replay"
	"github.com/fitzone/zoned/rgeo"
	"github.com/fitzone/zoned/store"
	"github.com/fitzone/zoned/stream"
	"github.com/fitzone/zoned/types/activity"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var optReplay = struct {
	athlete  string
	kind     string
	persist  bool
	rgeo     bool
	progress time.Duration
}{}

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Replay recorded fixes as an activity",
	Long: `Reads fixes from a file, or stdin when no file is given, and replays them
through the tracker on the fixes' own clock. Prints the finished activity as JSON.

Input may be NDJSON fixes, a JSON array, GeoJSON features or a FeatureCollection.

	cat run.ndjson | zoned replay --kind run
	zoned replay --persist --athlete rye ride.geojson`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		if err := runReplay(args); err != nil {
			slog.Error("Replay failed", "error", err)
			os.Exit(1)
		}
	},
}

func runReplay(args []string) error {
	kind, err := activity.Parse(optReplay.kind)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	// An interrupt stops the replay early; the activity still finishes.
	ctx, stop := common.InterruptContext(context.Background())
	defer stop()

	readMeter := stream.NewTickMeter("Read fixes", slog.Default(), optReplay.progress)
	fixes, err := replay.ReadFixes(in, readMeter)
	readMeter.Stop()
	if err != nil {
		return err
	}
	slog.Info("Read fixes", "count", humanize.Comma(int64(len(fixes))),
		"bytes", humanize.Bytes(uint64(readMeter.Bytes())))

	config := replay.Config{
		Athlete:  conceptual.AthleteID(optReplay.athlete),
		Kind:     kind,
		Tracking: params.DefaultTrackingConfig(),
		Position: params.DefaultPositionConfig(),
		Meter:    stream.NewTickMeter("Replayed fixes", slog.Default(), optReplay.progress),
	}
	defer config.Meter.Stop()

	if optReplay.rgeo {
		rg, err := rgeo.R()
		if err != nil {
			return err
		}
		config.Annotator = rgeo.NewAnnotator(rg)
	}
	if optReplay.persist {
		storeConfig := params.DefaultStoreConfig()
		storeConfig.DataDir = viper.GetString("datadir")
		if err := os.MkdirAll(storeConfig.DataDir, 0770); err != nil {
			return err
		}
		st, err := store.Open(storeConfig)
		if err != nil {
			return err
		}
		defer st.Close()
		config.Persister = st
	}

	res, err := replay.Run(ctx, fixes, config)
	if res != nil && res.Summary != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			slog.Error("Failed to write result", "error", err)
		}
	}
	return err
}

func init() {
	rootCmd.AddCommand(replayCmd)

	flags := replayCmd.Flags()
	flags.StringVar(&optReplay.athlete, "athlete", "replay", "Athlete the activity belongs to")
	flags.StringVar(&optReplay.kind, "kind", "walk", "Activity kind: walk, run, cycle")
	flags.BoolVar(&optReplay.persist, "persist", false, "Save the activity to the store under --datadir")
	flags.BoolVar(&optReplay.rgeo, "rgeo", false, "Reverse geocode the start place")
	flags.DurationVar(&optReplay.progress, "progress", 5*time.Second, "Progress log interval, 0 to disable")
}
