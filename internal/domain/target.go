package domain

import "strings"

// TimestampLayout is the layout of Target.Timestamp ("YYYYMMDD_HHMMSS", UTC).
const TimestampLayout = "20060102_150405"

// Target is one CSV object queued for batch processing. It is created when a
// storage trigger event is parsed and never mutated afterwards; Timestamp is
// assigned once at extraction time and stays stable for the whole request.
type Target struct {
	Bucket      string `json:"BucketName"`
	Prefix      string `json:"Prefix"`
	Object      string `json:"Object"`
	PrincipalID string `json:"PrincipalId"`
	Timestamp   string `json:"Timestamp"`
}

// Key returns the object key inside the bucket.
func (t Target) Key() string {
	return t.Prefix + t.Object
}

// Path returns "<bucket>/<prefix><object>", the identity used in batch IDs,
// outcomes and reports.
func (t Target) Path() string {
	return t.Bucket + "/" + t.Key()
}

// SplitPath is the inverse of Target.Path: it returns the bucket, the key
// and the bare file name of a "<bucket>/<key>" path.
func SplitPath(path string) (bucket, key, fileName string) {
	bucket, key, _ = strings.Cut(path, "/")
	fileName = key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		fileName = key[i+1:]
	}
	return bucket, key, fileName
}
