package resource

import "strings"

// NormalizeAlias lowercases an owner name and strips every space so that
// "Acme Corp" and "acme corp" join on the same key.
func NormalizeAlias(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "")
}

// OwnerFromTags returns the value of the first tag whose key equals key.
func OwnerFromTags(tags []Tag, key string) (string, bool) {
	for _, tag := range tags {
		if tag.Key == key {
			return tag.Value, true
		}
	}
	return "", false
}
