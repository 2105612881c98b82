// Package resource defines the ownership model for tagsweep.
package resource

// UnknownOwner is the owner recorded when a resource carries no ownership tag.
const UnknownOwner = "Unknown"

// Tag is a single key/value pair as returned by a tagging API.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Locator identifies a resource as returned by an enumeration call.
type Locator struct {
	Raw    string `json:"raw"`    // ARN or queue URL
	Name   string `json:"name"`   // Native short name (e.g., "i-abc123"), may be empty
	Region string `json:"region"` // Region the resource was listed in
}

// Record is the persisted ownership row.
type Record struct {
	Alias        string `json:"alias"`         // Normalized owner key
	OwnerName    string `json:"owner_name"`    // Owner as read from the tag
	ResourceType string `json:"resource_type"` // Kind.RecordType()
	ResourceID   string `json:"resource_id"`   // ExtractID result
}

// Key returns the identity triple of the record joined with "|".
func (r Record) Key() string {
	return r.Alias + "|" + r.ResourceID + "|" + r.ResourceType
}
