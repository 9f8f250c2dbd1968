// This file contains the UserManager implementation, which is responsible for interacting with the MongoDB users collection.
// The UserManager struct contains a pointer to the users collection and a logger. It provides methods to insert, list, find,
// update and delete users. Interaction with users is by email, as a unique index guarantees the email is unique.
//
// Every mutating method validates its input before reaching the database. Absence of a user is never an error: the find,
// update and delete methods report it through their boolean return value.

package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/NeRF-or-Nothing/user-store/internal/log"
)

// UniquenessError is returned when an insert would duplicate a unique field.
type UniquenessError struct {
	Field string
	Value string
	Err   error
}

func (e *UniquenessError) Error() string {
	return fmt.Sprintf("%s %q is already taken", e.Field, e.Value)
}

func (e *UniquenessError) Unwrap() error {
	return e.Err
}

// documentValidationFailure is the server error code for a write rejected by the collection validator.
const documentValidationFailure = 121

// FieldDocument marks a violation reported by the database for the document as a whole.
const FieldDocument = "document"

// serverValidationError maps a write rejected by the collection's $jsonSchema to *ValidationError.
func serverValidationError(err error) error {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorCode(documentValidationFailure) {
		return &ValidationError{
			Violations: []FieldViolation{{Field: FieldDocument, Rule: "schema", Message: "Document failed validation"}},
			Err:        err,
		}
	}
	return err
}

type UserManager struct {
	collection *mongo.Collection
	logger     *log.Logger
}

// NewUserManager creates a new instance of UserManager over the given users collection.
func NewUserManager(collection *mongo.Collection, logger *log.Logger) *UserManager {
	return &UserManager{
		collection: collection,
		logger:     logger,
	}
}

// Insert validates the candidate and inserts it as a new user, assigning its ID and creation time.
// Returns *ValidationError if the candidate is invalid, *UniquenessError if the email is already taken.
func (um *UserManager) Insert(ctx context.Context, candidate Candidate) (*User, error) {
	candidate = candidate.Normalize()
	if err := Validate(candidate); err != nil {
		return nil, err
	}

	// BSON dates have millisecond precision
	user := &User{
		ID:        primitive.NewObjectID(),
		Name:      candidate.Name,
		Email:     candidate.Email,
		Age:       *candidate.Age,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if _, err := um.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &UniquenessError{Field: FieldEmail, Value: user.Email, Err: err}
		}
		return nil, serverValidationError(err)
	}

	um.logger.Debugf("Inserted user %s (%s)", user.ID.Hex(), user.Email)
	return user, nil
}

// List returns every user in the collection, in the order the database returns them.
func (um *UserManager) List(ctx context.Context) ([]User, error) {
	cursor, err := um.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	users := []User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FindByEmail retrieves the user with the given email. The email is normalized before lookup.
// Returns nil, false, nil if no user matches.
func (um *UserManager) FindByEmail(ctx context.Context, email string) (*User, bool, error) {
	var user User
	err := um.collection.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&user)
	return found(&user, err)
}

// UpdateByEmail applies the patch to the user with the given email and returns the updated user.
// The patch is validated with the same rules as Insert. An empty patch returns the current user unchanged.
// Returns nil, false, nil if no user matches.
func (um *UserManager) UpdateByEmail(ctx context.Context, email string, patch Patch) (*User, bool, error) {
	patch = patch.Normalize()
	if err := ValidatePatch(patch); err != nil {
		return nil, false, err
	}
	if patch.IsEmpty() {
		return um.FindByEmail(ctx, email)
	}

	set := bson.M{}
	if patch.Name != nil {
		set[FieldName] = *patch.Name
	}
	if patch.Age != nil {
		set[FieldAge] = *patch.Age
	}

	var user User
	err := um.collection.FindOneAndUpdate(
		ctx,
		bson.M{"email": NormalizeEmail(email)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	return found(&user, serverValidationError(err))
}

// DeleteByEmail deletes the user with the given email and returns the deleted user.
// Returns nil, false, nil if no user matches, so repeated deletes are harmless.
func (um *UserManager) DeleteByEmail(ctx context.Context, email string) (*User, bool, error) {
	var user User
	err := um.collection.FindOneAndDelete(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&user)
	return found(&user, err)
}

// found maps mongo.ErrNoDocuments to a not-found result.
func found(user *User, err error) (*User, bool, error) {
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return user, true, nil
}
