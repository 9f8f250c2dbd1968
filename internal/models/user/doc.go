// Package user contains the validated lifecycle of user records stored in MongoDB.
// The UserManager struct is responsible for interacting with the users collection. It is CRUD for the user collection,
// keyed by email. Validate and ValidatePatch hold the schema rules and are independent of the database.
package user
