package metadata

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayout is the canonical representation stored in the
// relational store.
const timestampLayout = "2006-01-02 15:04:05"

// Record is one normalized metadata row for the illusts table. Pointer
// fields are nullable; Tags is always a string (an absent or empty tag
// list becomes "", not null). Filename is the primary key in filename
// key mode and is never null.
type Record struct {
	Filename        string
	ID              *int64
	Title           *string
	Type            *string
	Restrict        *int64
	UserName        *string
	UserAccount     *string
	Tags            string
	CreateDate      *string
	PageCount       *int64
	Width           *int64
	Height          *int64
	SanityLevel     *int64
	XRestrict       *int64
	TotalView       *int64
	TotalBookmarks  *int64
	IsBookmarked    *bool
	Visible         *bool
	IsMuted         *bool
	IllustAIType    *int64
	IllustBookStyle *int64
	Num             *int64
	Date            *string
	Rating          *string
	Suffix          *string
	Category        *string
	Subcategory     *string
	URL             *string
	DateURL         *string
	Extension       *string
}

// Extract projects a sidecar JSON payload into a Record. assetFilename
// is the owning image's filename and is authoritative for the Filename
// column; the sidecar's own filename field is used only when it is empty.
//
// Only a payload that is not parseable as JSON at all fails the record.
// Individual fields of an unexpected type degrade to null (or "" for
// tags) rather than aborting.
func Extract(payload []byte, assetFilename string) (*Record, error) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse sidecar: %w", err)
	}

	rec := &Record{
		Filename:        assetFilename,
		ID:              getInt(doc, "id"),
		Title:           getString(doc, "title"),
		Type:            getString(doc, "type"),
		Restrict:        getInt(doc, "restrict"),
		Tags:            joinTags(doc["tags"]),
		CreateDate:      normalizeTimestamp(getString(doc, "create_date")),
		PageCount:       getInt(doc, "page_count"),
		Width:           getInt(doc, "width"),
		Height:          getInt(doc, "height"),
		SanityLevel:     getInt(doc, "sanity_level"),
		XRestrict:       getInt(doc, "x_restrict"),
		TotalView:       getInt(doc, "total_view"),
		TotalBookmarks:  getInt(doc, "total_bookmarks"),
		IsBookmarked:    getBool(doc, "is_bookmarked"),
		Visible:         getBool(doc, "visible"),
		IsMuted:         getBool(doc, "is_muted"),
		IllustAIType:    getInt(doc, "illust_ai_type"),
		IllustBookStyle: getInt(doc, "illust_book_style"),
		Num:             getInt(doc, "num"),
		Date:            normalizeTimestamp(getString(doc, "date")),
		Rating:          getString(doc, "rating"),
		Suffix:          getString(doc, "suffix"),
		Category:        getString(doc, "category"),
		Subcategory:     getString(doc, "subcategory"),
		URL:             getString(doc, "url"),
		DateURL:         getString(doc, "date_url"),
		Extension:       getString(doc, "extension"),
	}

	if user, ok := doc["user"].(map[string]any); ok {
		rec.UserName = getString(user, "name")
		rec.UserAccount = getString(user, "account")
	}

	if rec.Filename == "" {
		if f := getString(doc, "filename"); f != nil {
			rec.Filename = *f
		}
	}

	return rec, nil
}

// getString returns the field as *string, or nil if absent or not a string.
func getString(doc map[string]any, key string) *string {
	if v, ok := doc[key].(string); ok {
		return &v
	}
	return nil
}

// getInt returns the field as *int64, or nil if absent or not numeric.
// JSON numbers decode as float64; fractional values are truncated.
func getInt(doc map[string]any, key string) *int64 {
	if v, ok := doc[key].(float64); ok {
		n := int64(v)
		return &n
	}
	return nil
}

// getBool returns the field as *bool, or nil if absent or not a bool.
func getBool(doc map[string]any, key string) *bool {
	if v, ok := doc[key].(bool); ok {
		return &v
	}
	return nil
}

// joinTags normalizes a list-valued tag field into one comma-joined
// string. Absent, empty or malformed lists yield the empty string;
// non-string elements are dropped.
func joinTags(v any) string {
	list, ok := v.([]any)
	if !ok {
		return ""
	}
	tags := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			tags = append(tags, s)
		}
	}
	return strings.Join(tags, ",")
}

// naiveLayout accepts ISO timestamps without a zone designator, which
// some sidecar producers emit.
const naiveLayout = "2006-01-02T15:04:05"

// normalizeTimestamp converts an RFC 3339 timestamp (a trailing Z is
// read as UTC) or a zone-less ISO timestamp into the canonical
// YYYY-MM-DD HH:MM:SS form. An absent or unparsable input yields null.
func normalizeTimestamp(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		t, err = time.Parse(naiveLayout, *s)
	}
	if err != nil {
		return nil
	}
	out := t.Format(timestampLayout)
	return &out
}
