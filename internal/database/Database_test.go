package database

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/NeRF-or-Nothing/user-store/internal/log"
)

var testIndexes = []mongo.IndexModel{
	{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
}

var testValidator = bson.M{"$jsonSchema": bson.M{"bsonType": "object"}}

func TestEnsureCollection(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates collection and indexes", func(mt *mtest.T) {
		db := New(mt.Client, "userdb", log.NewNopLogger())
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())

		coll, err := db.EnsureCollection(context.Background(), "users", testValidator, testIndexes)
		if err != nil {
			mt.Fatalf("EnsureCollection: %v", err)
		}
		if coll.Name() != "users" {
			mt.Errorf("collection = %s, want users", coll.Name())
		}

		create := mt.GetStartedEvent()
		if create.CommandName != "create" {
			mt.Fatalf("first command = %s, want create", create.CommandName)
		}
		if _, err := create.Command.LookupErr("validator"); err != nil {
			mt.Error("create command is missing the validator")
		}
		if name := mt.GetStartedEvent().CommandName; name != "createIndexes" {
			mt.Errorf("second command = %s, want createIndexes", name)
		}
	})

	mt.Run("existing collection gets its validator updated", func(mt *mtest.T) {
		db := New(mt.Client, "userdb", log.NewNopLogger())
		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: namespaceExistsCode, Name: "NamespaceExists", Message: "Collection already exists"}),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		if _, err := db.EnsureCollection(context.Background(), "users", testValidator, testIndexes); err != nil {
			mt.Fatalf("EnsureCollection: %v", err)
		}

		var commands []string
		for ev := mt.GetStartedEvent(); ev != nil; ev = mt.GetStartedEvent() {
			commands = append(commands, ev.CommandName)
		}
		want := []string{"create", "collMod", "createIndexes"}
		if len(commands) != len(want) {
			mt.Fatalf("commands = %v, want %v", commands, want)
		}
		for i := range want {
			if commands[i] != want[i] {
				mt.Fatalf("commands = %v, want %v", commands, want)
			}
		}
	})

	mt.Run("other errors propagate", func(mt *mtest.T) {
		db := New(mt.Client, "userdb", log.NewNopLogger())
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Name: "Unauthorized", Message: "not authorized"}))

		if _, err := db.EnsureCollection(context.Background(), "users", testValidator, testIndexes); err == nil {
			mt.Fatal("expected an error")
		}
	})
}
