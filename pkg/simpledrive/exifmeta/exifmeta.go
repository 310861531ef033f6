// Package exifmeta extracts EXIF metadata from JPEG and TIFF uploads.
package exifmeta

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Extractor reads EXIF fields into a flat map keyed by EXIF field name.
// DateTimeOriginal is stored as a time.Time, every other string field as
// its trimmed value.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Supports(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg", "image/tiff":
		return true
	}
	return false
}

func (e *Extractor) Extract(data []byte) (map[string]any, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode exif: %w", err)
	}

	w := walker{fields: map[string]any{}}
	if err := x.Walk(&w); err != nil {
		return nil, fmt.Errorf("failed to walk exif: %w", err)
	}

	if taken, err := x.DateTime(); err == nil {
		w.fields[string(exif.DateTimeOriginal)] = taken
	}
	return w.fields, nil
}

type walker struct {
	fields map[string]any
}

func (w *walker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if value, ok := tagValue(tag); ok {
		w.fields[string(name)] = value
	}
	return nil
}

// tagValue converts single-valued tags to plain Go values. Multi-valued
// numeric tags fall back to their string rendering.
func tagValue(tag *tiff.Tag) (any, bool) {
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil, false
		}
		s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
		return s, s != ""
	case tiff.IntVal:
		if tag.Count == 1 {
			v, err := tag.Int64(0)
			return v, err == nil
		}
	case tiff.RatVal:
		if tag.Count == 1 {
			num, den, err := tag.Rat2(0)
			if err != nil || den == 0 {
				return nil, false
			}
			return float64(num) / float64(den), true
		}
	case tiff.FloatVal:
		if tag.Count == 1 {
			v, err := tag.Float(0)
			return v, err == nil
		}
	case tiff.UndefVal, tiff.OtherVal:
		return nil, false
	}
	return tag.String(), true
}
