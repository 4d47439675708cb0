// Package migration parses mailbox migration statistics exported from
// Exchange Online and reports the items a migration skipped.
//
// The expected input is the JSON written by
//
//	Get-MigrationUserStatistics -IncludeSkippedItems | ConvertTo-Json -Depth 5
//
// which is an array of users, or a single object when only one user matched.
package migration

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when the statistics export is not valid JSON.
var ErrInvalidJSON = errors.New("migration statistics are not valid JSON")

// SkippedItem is one item a migration did not copy.
type SkippedItem struct {
	Mailbox      string
	Kind         string
	FolderName   string
	Subject      string
	Sender       string
	MessageClass string
	DateReceived time.Time
	MessageSize  int64
	Failure      string
}

// UserStatistics is the migration state of one mailbox.
type UserStatistics struct {
	Identity         string
	BatchID          string
	Status           string
	SkippedItemCount int64
	Items            []SkippedItem
}

// Summary counts skipped items of one kind for one mailbox.
type Summary struct {
	Mailbox   string
	Kind      string
	Count     int
	TotalSize int64
}

var (
	dotNetDate = regexp.MustCompile(`^/Date\((-?\d+)(?:[+-]\d{4})?\)/$`)
	byteCount  = regexp.MustCompile(`\(([\d,.\s]+) bytes\)`)
)

// ParseStatistics parses a statistics export.
func ParseStatistics(data []byte) ([]UserStatistics, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}

	root := gjson.ParseBytes(data)
	var users []gjson.Result
	switch {
	case root.IsArray():
		users = root.Array()
	case root.IsObject():
		users = []gjson.Result{root}
	default:
		return nil, fmt.Errorf("%w: expected an object or array, got %s", ErrInvalidJSON, root.Type)
	}

	stats := make([]UserStatistics, 0, len(users))
	for i, u := range users {
		if !u.IsObject() {
			return nil, fmt.Errorf("entry %d: expected an object, got %s", i, u.Type)
		}
		stats = append(stats, parseUser(u))
	}
	return stats, nil
}

func parseUser(u gjson.Result) UserStatistics {
	s := UserStatistics{
		Identity:         firstString(u, "Identity", "EmailAddress", "MailboxIdentity", "MailboxEmailAddress"),
		BatchID:          firstString(u, "BatchId", "BatchName"),
		Status:           firstString(u, "Status", "StatusDetail"),
		SkippedItemCount: u.Get("SkippedItemCount").Int(),
	}

	u.Get("SkippedItems").ForEach(func(_, item gjson.Result) bool {
		s.Items = append(s.Items, SkippedItem{
			Mailbox:      s.Identity,
			Kind:         firstString(item, "Kind"),
			FolderName:   firstString(item, "FolderName"),
			Subject:      firstString(item, "Subject"),
			Sender:       firstString(item, "Sender"),
			MessageClass: firstString(item, "MessageClass"),
			DateReceived: parseDate(item.Get("DateReceived")),
			MessageSize:  parseSize(item.Get("MessageSize")),
			Failure:      parseFailure(item.Get("Failure")),
		})
		return true
	})

	if s.SkippedItemCount == 0 {
		s.SkippedItemCount = int64(len(s.Items))
	}
	return s
}

// firstString returns the first non-empty value among keys. Object values
// (serialized identity types) are reduced to their name or id.
func firstString(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		v := r.Get(k)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.IsObject() {
			v = objectName(v)
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}

func objectName(obj gjson.Result) gjson.Result {
	for _, k := range []string{"Name", "Id", "Value", "ToString"} {
		if v := obj.Get(k); v.Exists() && v.String() != "" {
			return v
		}
	}
	return gjson.Result{}
}

// parseDate accepts the "/Date(ms)/" form written by ConvertTo-Json as well as
// RFC 3339 strings. Unparseable values yield the zero time.
func parseDate(v gjson.Result) time.Time {
	if v.IsObject() {
		v = objectName(v)
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return time.Time{}
	}
	if m := dotNetDate.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return time.Time{}
		}
		return time.UnixMilli(ms).UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "1/2/2006 3:04:05 PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseSize accepts a plain byte count or an Exchange ByteQuantifiedSize
// string such as "12.5 KB (12,800 bytes)".
func parseSize(v gjson.Result) int64 {
	switch {
	case v.Type == gjson.Number:
		return v.Int()
	case v.IsObject():
		return parseSize(objectName(v))
	}
	s := strings.TrimSpace(v.String())
	if m := byteCount.FindStringSubmatch(s); m != nil {
		// Thousands separators depend on the exporting host's locale.
		s = strings.NewReplacer(",", "", ".", "", " ", "").Replace(m[1])
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseFailure(v gjson.Result) string {
	if v.IsObject() {
		return firstString(v, "Message", "FailureType", "DataContext")
	}
	return strings.TrimSpace(v.String())
}

// Items flattens the skipped items of all users.
func Items(stats []UserStatistics) []SkippedItem {
	var items []SkippedItem
	for _, s := range stats {
		items = append(items, s.Items...)
	}
	return items
}

// Filter keeps items whose kind is one of kinds, compared case-insensitively.
// An empty kinds list keeps everything.
func Filter(items []SkippedItem, kinds []string) []SkippedItem {
	if len(kinds) == 0 {
		return items
	}
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[strings.ToLower(strings.TrimSpace(k))] = true
	}

	var out []SkippedItem
	for _, it := range items {
		if want[strings.ToLower(it.Kind)] {
			out = append(out, it)
		}
	}
	return out
}

// Summarize counts items per mailbox and kind, ordered by mailbox then kind.
func Summarize(items []SkippedItem) []Summary {
	type key struct{ mailbox, kind string }
	totals := make(map[key]*Summary)
	for _, it := range items {
		k := key{it.Mailbox, it.Kind}
		s, ok := totals[k]
		if !ok {
			s = &Summary{Mailbox: it.Mailbox, Kind: it.Kind}
			totals[k] = s
		}
		s.Count++
		s.TotalSize += it.MessageSize
	}

	out := make([]Summary, 0, len(totals))
	for _, s := range totals {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mailbox != out[j].Mailbox {
			return out[i].Mailbox < out[j].Mailbox
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
