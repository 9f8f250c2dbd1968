// This file contains the User struct stored in the users collection, and the Candidate and Patch
// structs callers use to create and modify users.
//
// name and email are always normalized (trimmed and lowercased) before validation, so the stored
// values are lowercase regardless of input casing. email and created_at are immutable after insert,
// which is why Patch has no field for either.

package user

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user record in the system
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Age       int                `bson:"age" json:"age"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Candidate is the input for inserting a new user. An empty Name or Email and a nil Age are
// treated as missing.
type Candidate struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   *int   `json:"age"`
}

// Patch is a partial update. Only non-nil fields are validated and written.
type Patch struct {
	Name *string `json:"name,omitempty"`
	Age  *int    `json:"age,omitempty"`
}

// Int returns a pointer to v, for building Candidates and Patches.
func Int(v int) *int {
	return &v
}

// String returns a pointer to v, for building Patches.
func String(v string) *string {
	return &v
}

// NormalizeName trims and lowercases a name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeEmail trims and lowercases an email. Lookups by email always go through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize returns a copy of the candidate with name and email normalized.
func (c Candidate) Normalize() Candidate {
	c.Name = NormalizeName(c.Name)
	c.Email = NormalizeEmail(c.Email)
	return c
}

// Normalize returns a copy of the patch with the name normalized.
func (p Patch) Normalize() Patch {
	if p.Name != nil {
		p.Name = String(NormalizeName(*p.Name))
	}
	return p
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Age == nil
}
