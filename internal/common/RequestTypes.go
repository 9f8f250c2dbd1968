// This file contains the expected structure of incoming requests to the API. These structs are used to
// validate incoming requests, provide a consistent interface for handling requests, and to pass data to the
// appropriate handlers.

// Field rules for users (format, range, required-ness) are not repeated here: they belong to the user package, which
// reports every violation at once. The tags below only cover what is specific to the HTTP surface.

package common

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   *int   `json:"age"`
}

type UserEmailRequest struct {
	Email string `params:"email" json:"-" validate:"required"`
}

// UpdateUserRequest is a partial update. email and created_at are immutable, so sending either is rejected.
type UpdateUserRequest struct {
	Email     string  `params:"email" json:"-" validate:"required"`
	Name      *string `json:"name"`
	Age       *int    `json:"age"`
	NewEmail  *string `json:"email" validate:"isdefault"`
	CreatedAt *string `json:"created_at" validate:"isdefault"`
}
