// Package models holds the records shared by the fetch and build phases.
package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Post is one candidate yielded by a provider iterator
type Post struct {
	ID       string
	Caption  string
	ImageURL string
	PostURL  string
	TakenAt  time.Time
	IsVideo  bool
}

// Record converts an accepted post into its persisted form
func (p Post) Record(localImagePath string) PostRecord {
	r := PostRecord{
		ID:             p.ID,
		Caption:        p.Caption,
		LocalImagePath: localImagePath,
		PostURL:        p.PostURL,
		ImageURL:       p.ImageURL,
	}
	if !p.TakenAt.IsZero() {
		r.CapturedAt = p.TakenAt.UTC().Format(time.RFC3339)
	}
	return r
}

// PostRecord is one persisted post. CapturedAt is kept as text so values
// that do not parse survive a load/save cycle untouched.
type PostRecord struct {
	Caption        string `json:"caption"`
	LocalImagePath string `json:"local_image_path"`
	PostURL        string `json:"canonical_post_url"`
	ImageURL       string `json:"source_image_url"`
	CapturedAt     string `json:"captured_at"`
	ID             string `json:"id"`
}

// UnmarshalJSON accepts both the current keys and the older
// image_path/post_url/image_url/date/shortcode names. Current keys win.
func (r *PostRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Caption        *string `json:"caption"`
		LocalImagePath *string `json:"local_image_path"`
		PostURL        *string `json:"canonical_post_url"`
		ImageURL       *string `json:"source_image_url"`
		CapturedAt     *string `json:"captured_at"`
		ID             *string `json:"id"`

		LegacyImagePath *string `json:"image_path"`
		LegacyPostURL   *string `json:"post_url"`
		LegacyImageURL  *string `json:"image_url"`
		LegacyDate      *string `json:"date"`
		LegacyShortcode *string `json:"shortcode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = PostRecord{
		Caption:        firstSet(raw.Caption),
		LocalImagePath: firstSet(raw.LocalImagePath, raw.LegacyImagePath),
		PostURL:        firstSet(raw.PostURL, raw.LegacyPostURL),
		ImageURL:       firstSet(raw.ImageURL, raw.LegacyImageURL),
		CapturedAt:     firstSet(raw.CapturedAt, raw.LegacyDate),
		ID:             firstSet(raw.ID, raw.LegacyShortcode),
	}
	return nil
}

func firstSet(values ...*string) string {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return ""
}

var safeID = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// Validate checks the record invariants that the build phase relies on
func (r PostRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record has an empty id")
	}
	if !safeID.MatchString(r.ID) || strings.Contains(r.ID, "..") {
		return fmt.Errorf("record id %q is not filesystem-safe", r.ID)
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CapturedTime parses CapturedAt; ok is false when it is absent or unparseable
func (r PostRecord) CapturedTime() (t time.Time, ok bool) {
	value := strings.TrimSpace(r.CapturedAt)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Collection is the ordered unit the metadata store persists
type Collection []PostRecord

// SortByCapturedAt orders records with a parseable timestamp ascending,
// stably, within the slots they already occupy. Records without one stay
// at their index, so their relative order is preserved as well.
func (c Collection) SortByCapturedAt() {
	type dated struct {
		record PostRecord
		at     time.Time
	}

	var slots []int
	var items []dated
	for i, r := range c {
		if at, ok := r.CapturedTime(); ok {
			slots = append(slots, i)
			items = append(items, dated{record: r, at: at})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].at.Before(items[j].at)
	})

	for n, slot := range slots {
		c[slot] = items[n].record
	}
}

// IDs returns the record ids in order
func (c Collection) IDs() []string {
	ids := make([]string, len(c))
	for i, r := range c {
		ids[i] = r.ID
	}
	return ids
}
