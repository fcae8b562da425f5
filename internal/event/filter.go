// Package event turns storage notifications into processing targets.
package event

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/ignite/batch-email/internal/domain"
)

// Wildcard matches any bucket, prefix, suffix or event name.
const Wildcard = "*"

// Filter selects records. Every non-empty list must match; an empty list
// matches everything, as does a list containing Wildcard.
type Filter struct {
	Buckets  []string
	Prefixes []string
	Suffixes []string
	// Events are event name prefixes such as "ObjectCreated".
	Events []string
}

// FilterTargets returns a Target for every record the filter admits, in
// record order. Keys are URL-decoded; the prefix is everything up to and
// including the last "/". All targets share one timestamp taken from now.
func FilterTargets(records []events.S3EventRecord, f Filter, now time.Time) []domain.Target {
	ts := now.UTC().Format(domain.TimestampLayout)

	var targets []domain.Target
	for _, rec := range records {
		key := decodedKey(rec.S3.Object)
		prefix, object := splitKey(key)
		bucket := rec.S3.Bucket.Name

		if !matches(f.Buckets, func(a string) bool { return a == bucket }) ||
			!matches(f.Prefixes, func(a string) bool { return strings.HasPrefix(prefix, a) }) ||
			!matches(f.Suffixes, func(a string) bool { return strings.HasSuffix(object, a) }) ||
			!matches(f.Events, func(a string) bool { return strings.HasPrefix(rec.EventName, a) }) {
			continue
		}
		if object == "" {
			// Folder placeholder objects end in "/".
			continue
		}

		targets = append(targets, domain.Target{
			Bucket:      bucket,
			Prefix:      prefix,
			Object:      object,
			PrincipalID: rec.PrincipalID.PrincipalID,
			Timestamp:   ts,
		})
	}
	return targets
}

// IsRemoval reports whether an event name denotes an object deletion.
func IsRemoval(eventName string) bool {
	return strings.HasPrefix(eventName, "ObjectRemoved")
}

func matches(allowed []string, fn func(string) bool) bool {
	if len(allowed) == 0 || slices.Contains(allowed, Wildcard) {
		return true
	}
	return slices.ContainsFunc(allowed, fn)
}

func decodedKey(obj events.S3Object) string {
	if obj.URLDecodedKey != "" {
		return obj.URLDecodedKey
	}
	if k, err := url.QueryUnescape(obj.Key); err == nil {
		return k
	}
	return obj.Key
}

func splitKey(key string) (prefix, object string) {
	i := strings.LastIndex(key, "/")
	if i < 0 {
		return "", key
	}
	return key[:i+1], key[i+1:]
}
