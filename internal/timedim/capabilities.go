// Package timedim holds the time dimension of the orthomosaic and applies
// a selected timestamp to every time-aware WMS layer.
package timedim

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoTimes is returned when a capabilities document carries no time
// dimension values.
var ErrNoTimes = errors.New("capabilities carry no time dimension")

// dateLen is the precision kept from each time value (YYYY-MM-DD).
const dateLen = 10

type wmsCapabilities struct {
	XMLName    xml.Name `xml:"WMS_Capabilities"`
	Capability struct {
		Layer wmsLayer `xml:"Layer"`
	} `xml:"Capability"`
}

type wmsLayer struct {
	Name       string         `xml:"Name"`
	Dimensions []wmsDimension `xml:"Dimension"`
	Layers     []wmsLayer     `xml:"Layer"`
}

type wmsDimension struct {
	Name    string `xml:"name,attr"`
	Default string `xml:"default,attr"`
	Values  string `xml:",chardata"`
}

// ParseCapabilities reads a WMS 1.3.0 GetCapabilities document and returns
// the values of the first time dimension found under Capability/Layer,
// depth first, each cut to date precision.
func ParseCapabilities(r io.Reader) ([]string, error) {
	var caps wmsCapabilities
	if err := xml.NewDecoder(r).Decode(&caps); err != nil {
		return nil, fmt.Errorf("parse capabilities: %w", err)
	}
	dim, ok := findTime(caps.Capability.Layer)
	if !ok {
		return nil, ErrNoTimes
	}
	times := SplitValues(dim.Values)
	if len(times) == 0 {
		return nil, ErrNoTimes
	}
	return times, nil
}

func findTime(l wmsLayer) (wmsDimension, bool) {
	for _, d := range l.Dimensions {
		if strings.EqualFold(d.Name, "time") {
			return d, true
		}
	}
	for _, child := range l.Layers {
		if d, ok := findTime(child); ok {
			return d, true
		}
	}
	return wmsDimension{}, false
}

// SplitValues splits a comma separated dimension value list. Each value is
// trimmed and cut to its first ten characters; ranges are not expanded.
func SplitValues(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if len(v) > dateLen {
			v = v[:dateLen]
		}
		out = append(out, v)
	}
	return out
}
