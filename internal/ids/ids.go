// Package ids generates and validates primary keys for stored documents.
package ids

import "go.mongodb.org/mongo-driver/bson/primitive"

// New returns a fresh 24-character hexadecimal identifier.
func New() string {
	return primitive.NewObjectID().Hex()
}

// Valid reports whether id is a well-formed identifier.
func Valid(id string) bool {
	return primitive.IsValidObjectID(id)
}

// AllValid reports whether every id in the slice is well-formed.
func AllValid(ids []string) bool {
	for _, id := range ids {
		if !Valid(id) {
			return false
		}
	}
	return true
}
