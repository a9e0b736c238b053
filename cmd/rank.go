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
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/fitzone/zoned/geo/rank"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/stream"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
)

var optRank = struct {
	lat, lng float64
	limit    int
}{}

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank [file]",
	Short: "Rank places by distance, rating and category",
	Long: `Reads NDJSON places from a file, or stdin, and prints them ranked
against --lat and --lng, best first.

	{"id":"p1","name":"Riverside","category":"park","lat":40.71,"lng":-74.0,"rating":4.5}`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		if err := runRank(cmd, args); err != nil {
			slog.Error("Rank failed", "error", err)
			os.Exit(1)
		}
	},
}

func runRank(cmd *cobra.Command, args []string) error {
	if !cmdFlagChanged(cmd, "lat") || !cmdFlagChanged(cmd, "lng") {
		return errors.New("--lat and --lng are required")
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

	ctx := context.Background()
	placesCh, errs := stream.NDJSON[rank.Place](ctx, in)
	places := stream.Collect(ctx, stream.Filter(ctx, func(p rank.Place) bool {
		if p.Category != "" && !p.Category.IsKnown() {
			slog.Warn("Skipping place of unknown category", "id", p.ID, "category", p.Category)
			return false
		}
		return true
	}, placesCh))
	if err := <-errs; err != nil {
		return err
	}

	ranker := rank.NewRanker(params.DefaultRankConfig())
	ranked := ranker.Rank(orb.Point{optRank.lng, optRank.lat}, places, optRank.limit)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ranked)
}

func cmdFlagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func init() {
	rootCmd.AddCommand(rankCmd)

	flags := rankCmd.Flags()
	flags.Float64Var(&optRank.lat, "lat", 0, "Reference latitude")
	flags.Float64Var(&optRank.lng, "lng", 0, "Reference longitude")
	flags.IntVar(&optRank.limit, "limit", params.DefaultRankConfig().Limit, "Maximum places to print")
}
