package network

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DecodeOptions configures GeoJSON decoding.
type DecodeOptions struct {
	// CostProperty overrides the property holding the base cost (default "_cost").
	CostProperty string
}

// ReadGeoJSON decodes a FeatureCollection of LineStrings into segments.
func ReadGeoJSON(r io.Reader, opts ...DecodeOptions) ([]Segment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	return FromFeatureCollection(fc, opts...), nil
}

// FromFeatureCollection converts features into segments, one per feature and
// in feature order. Features without LineString geometry keep their
// properties but no coordinates; a feature without a readable cost gets a
// NaN cost. Both are left for the cleanser to reject.
func FromFeatureCollection(fc *geojson.FeatureCollection, opts ...DecodeOptions) []Segment {
	costKey := CostKey
	if len(opts) > 0 && opts[0].CostProperty != "" {
		costKey = opts[0].CostProperty
	}
	if fc == nil {
		return nil
	}

	segs := make([]Segment, 0, len(fc.Features))
	for _, f := range fc.Features {
		seg := Segment{Cost: math.NaN(), Properties: f.Properties}
		if ls, ok := f.Geometry.(orb.LineString); ok {
			seg.Coordinates = ls
		}
		if f.Properties != nil {
			if c, ok := numberProperty(f.Properties, costKey); ok {
				seg.Cost = c
			}
			if c, ok := numberProperty(f.Properties, ForwardCostKey); ok {
				seg.ForwardCost = c
			}
			if c, ok := numberProperty(f.Properties, BackwardCostKey); ok {
				seg.BackwardCost = c
			}
			if d, ok := f.Properties[DirectionKey].(string); ok {
				seg.Direction = ParseDirection(d)
			}
		}
		segs = append(segs, seg)
	}
	return segs
}

// ToFeatureCollection encodes segments back to GeoJSON, writing the current
// costs and direction into each feature's properties.
func ToFeatureCollection(segs []Segment) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range segs {
		s := &segs[i]
		f := geojson.NewFeature(s.Coordinates)
		if s.Properties != nil {
			f.Properties = s.Properties.Clone()
		}
		f.Properties[CostKey] = s.Cost
		if s.ForwardCost > 0 {
			f.Properties[ForwardCostKey] = s.ForwardCost
		}
		if s.BackwardCost > 0 {
			f.Properties[BackwardCostKey] = s.BackwardCost
		}
		f.Properties[DirectionKey] = s.Direction.String()
		fc.Append(f)
	}
	return fc
}

func numberProperty(p geojson.Properties, key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}
