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
	"encoding/json"
	"log/slog"
	"os"

	"github.com/fitzone/zoned/geo/zones"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/render"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
)

var optTiles = struct {
	lat, lng      float64
	zoom          int
	width, height int
	layer         string
	dx, dy        float64
}{}

// tilesCmd represents the tiles command
var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "List the map tiles covering a screen",
	Long: `Prints the tiles, with their screen offsets, that a map of --width x --height
pixels centered on --lat/--lng at --zoom needs, and the zone cell under the center.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		config := params.DefaultTileConfig()
		v := render.NewViewport(config, orb.Point{optTiles.lng, optTiles.lat}, optTiles.width, optTiles.height)
		v.SetZoom(optTiles.zoom)
		if err := v.SetLayer(optTiles.layer); err != nil {
			slog.Error("Bad layer", "error", err, "layers", v.Layers())
			os.Exit(1)
		}
		if optTiles.dx != 0 || optTiles.dy != 0 {
			v.Pan(optTiles.dx, optTiles.dy)
		}

		out := struct {
			Center orb.Point     `json:"center"`
			Zoom   int           `json:"zoom"`
			Layer  string        `json:"layer"`
			Zone   string        `json:"zone"`
			Tiles  []render.Tile `json:"tiles"`
		}{
			Center: v.Center,
			Zoom:   int(v.Zoom),
			Layer:  v.Layer,
			Zone:   zones.Token(v.Center, zones.CellLevel(params.DefaultTrackingConfig().ZoneCellLevel)),
			Tiles:  v.Tiles(),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			slog.Error("Failed to write tiles", "error", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(tilesCmd)

	defaults := params.DefaultTileConfig()

	flags := tilesCmd.Flags()
	flags.Float64Var(&optTiles.lat, "lat", 0, "Center latitude")
	flags.Float64Var(&optTiles.lng, "lng", 0, "Center longitude")
	flags.IntVar(&optTiles.zoom, "zoom", int(defaults.DefaultZoom), "Zoom level, clamped to the layer's range")
	flags.IntVar(&optTiles.width, "width", 512, "Screen width in pixels")
	flags.IntVar(&optTiles.height, "height", 512, "Screen height in pixels")
	flags.StringVar(&optTiles.layer, "layer", defaults.DefaultLayer, "Tile layer")
	flags.Float64Var(&optTiles.dx, "dx", 0, "Pan right by this many pixels")
	flags.Float64Var(&optTiles.dy, "dy", 0, "Pan down by this many pixels")
}
