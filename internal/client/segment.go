package client

import "strings"

// Bucket is the canonical segment used for templating and priority.
type Bucket string

const (
	BucketVIP     Bucket = "vip"
	BucketLoyal   Bucket = "loyal"
	BucketNew     Bucket = "new"
	BucketDefault Bucket = "default"
)

// Markers are matched as lowercase substrings, English and Russian.
var (
	vipMarkers   = []string{"vip"}
	loyalMarkers = []string{"loyal", "лояльн"}
	newMarkers   = []string{"new", "нов"}
)

// BucketOf normalizes a free-form segment label. Checks run in the order
// vip, loyal, new; anything else falls to default.
func BucketOf(segment string) Bucket {
	s := strings.ToLower(segment)
	switch {
	case s == "":
		return BucketDefault
	case containsAny(s, vipMarkers):
		return BucketVIP
	case containsAny(s, loyalMarkers):
		return BucketLoyal
	case containsAny(s, newMarkers):
		return BucketNew
	default:
		return BucketDefault
	}
}

// Bucket returns the canonical segment of the client.
func (c Client) Bucket() Bucket {
	return BucketOf(c.Segment)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
