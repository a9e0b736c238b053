package fix

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
)

var ErrDecodeFixes = errors.New("could not decode as fixes or geojson or geojsonfc or ndjson")

// DecodeShotgun tries the shapes devices have been seen to push and
// returns the fixes in input order.
// Accepted: a FeatureCollection, a single Feature, a single flat fix object,
// a JSON array of Features or flat fixes, and NDJSON of any of those.
func DecodeShotgun(data []byte) ([]Fix, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecodeFixes)
	}
	out := []Fix{}
	err := ScanJSONMessages(bytes.NewReader(data), func(msg json.RawMessage) error {
		return DecodingJSONFixObject(msg, func(f Fix) error {
			out = append(out, f)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFixes, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no fixes", ErrDecodeFixes)
	}
	return out, nil
}

// ScanJSONMessages reads a stream of JSON messages from body and calls
// onEach for each one. A top-level array is unwrapped into its elements.
// A FeatureCollection is a single object; DecodingJSONFixObject handles its features.
func ScanJSONMessages(body io.Reader, onEach func(message json.RawMessage) error) error {
	buf := bufio.NewReader(body)
	peek, err := buf.Peek(1)
	if err != nil {
		return err
	}
	for len(peek) == 1 && (peek[0] == ' ' || peek[0] == '\n' || peek[0] == '\t' || peek[0] == '\r') {
		if _, err := buf.ReadByte(); err != nil {
			return err
		}
		if peek, err = buf.Peek(1); err != nil {
			return err
		}
	}
	dec := json.NewDecoder(buf)
	if peek[0] == '[' {
		if _, err := dec.Token(); err != nil {
			return err
		}
	}
	for dec.More() {
		var msg json.RawMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("decode err: %T %w", err, err)
		}
		if err := onEach(msg); err != nil {
			return err
		}
	}
	return nil
}

// DecodingJSONFixObject decodes one JSON object into fixes.
// A FeatureCollection calls onEach for each of its features.
func DecodingJSONFixObject(msg json.RawMessage, onEach func(f Fix) error) error {
	parsed := gjson.ParseBytes(msg)
	if !parsed.IsObject() {
		return errors.New("unexpected non-object, want fix object")
	}

	// Only GeoJSON objects carry 'type'; flat fixes do not.
	pType := parsed.Get("type")
	if !pType.Exists() {
		if !parsed.Get("lat").Exists() || !parsed.Get("lng").Exists() {
			return errors.New("flat fix missing lat or lng")
		}
		f := Fix{}
		if err := json.Unmarshal([]byte(parsed.Raw), &f); err != nil {
			return err
		}
		return onEach(f)
	}

	switch pType.String() {
	case "FeatureCollection":
		feats := parsed.Get("features")
		if !feats.Exists() {
			return errors.New("no 'features' attribute present in feature collection")
		}
		for _, ft := range feats.Array() {
			if err := DecodingJSONFixObject([]byte(ft.Raw), onEach); err != nil {
				return err
			}
		}
		return nil
	case "Feature":
		ft, err := geojson.UnmarshalFeature(msg)
		if err != nil {
			return err
		}
		f, err := FromFeature(ft)
		if err != nil {
			return err
		}
		return onEach(f)
	}
	return fmt.Errorf("unsupported geojson type %q", pType.String())
}
