// Package obs converts between object-storage addresses of the form
// s3://bucket/key and their bucket, parent key and name parts.
//
// Conversions are bit exact: repeated separators are kept and nothing is
// case folded.
package obs

import "strings"

const (
	Scheme    = "s3://"
	Separator = "/"
)

// ToURL builds the address of name under parentKey in bucket.
// An empty parentKey means the object sits at the bucket root.
func ToURL(bucket, parentKey, name string) string {
	return Scheme + bucket + Separator + ToKey(parentKey, name)
}

// ToKey joins parentKey and name. A blank parentKey yields name alone.
func ToKey(parentKey, name string) string {
	if strings.TrimSpace(parentKey) == "" {
		return name
	}
	return parentKey + Separator + name
}

// URLToPath strips the scheme, leaving bucket/key.
func URLToPath(url string) string {
	return strings.TrimPrefix(url, Scheme)
}

// Decompose splits an address into its bucket and key. An address
// without a key separator is a bare bucket and yields an empty key.
func Decompose(url string) (bucket, key string) {
	path := URLToPath(url)
	idx := strings.Index(path, Separator)
	if idx < 0 {
		return path, ""
	}
	return path[:idx], path[idx+len(Separator):]
}

func URLToBucket(url string) string {
	bucket, _ := Decompose(url)
	return bucket
}

func URLToKey(url string) string {
	_, key := Decompose(url)
	return key
}

// URLToParentKey returns the parent key of the object the address points at.
func URLToParentKey(url string) (string, bool) {
	return KeyToParentKey(URLToKey(url))
}

func URLToName(url string) string {
	return KeyToName(URLToKey(url))
}

// KeyToParentKey returns everything before the last separator.
// The second result is false when key has no separator at all.
func KeyToParentKey(key string) (string, bool) {
	idx := strings.LastIndex(key, Separator)
	if idx < 0 {
		return "", false
	}
	return key[:idx], true
}

// KeyToName returns everything after the last separator, or key itself.
func KeyToName(key string) string {
	idx := strings.LastIndex(key, Separator)
	if idx < 0 {
		return key
	}
	return key[idx+len(Separator):]
}
