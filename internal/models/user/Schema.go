package user

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EmailIndexName is the name of the unique index on email.
const EmailIndexName = "email_unique"

// CollectionValidator returns the $jsonSchema validator for the users collection. It mirrors the rules in
// Validate so the server rejects non-conforming documents written by any client, including updates.
func CollectionValidator() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{FieldName, FieldEmail, FieldAge, "created_at"},
			"properties": bson.M{
				FieldName: bson.M{
					"bsonType":    "string",
					"pattern":     NamePattern,
					"description": "Name must be in lowercase letters",
				},
				FieldEmail: bson.M{
					"bsonType":    "string",
					"pattern":     EmailPattern,
					"description": "Please enter a valid email",
				},
				FieldAge: bson.M{
					"bsonType":    bson.A{"int", "long"},
					"minimum":     MinAge,
					"maximum":     MaxAge,
					"description": "Age must be between 0 and 120",
				},
				"created_at": bson.M{
					"bsonType": "date",
				},
			},
		},
	}
}

// Indexes returns the indexes the users collection needs. The unique email index is what turns a
// duplicate insert into a UniquenessError.
func Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: FieldEmail, Value: 1}},
			Options: options.Index().SetUnique(true).SetName(EmailIndexName),
		},
	}
}
