// This file contains the Database handle, which owns the MongoDB client for the lifetime of the process.
//
// Connect pings the server before returning, so an unreachable store fails at startup instead of on the first query.
// Callers must defer Close on every exit path once Connect succeeds. Errors from the driver are returned unchanged.

package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/NeRF-or-Nothing/user-store/internal/config"
	"github.com/NeRF-or-Nothing/user-store/internal/log"
)

// namespaceExistsCode is the server error code for creating a collection that already exists.
const namespaceExistsCode = 48

type Database struct {
	client *mongo.Client
	db     *mongo.Database
	logger *log.Logger
}

// Connect creates a MongoDB client for cfg.URI, verifies the server is reachable and returns a handle on cfg.Database.
func Connect(ctx context.Context, cfg config.MongoConfig, logger *log.Logger) (*Database, error) {
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Infof("MongoDB connected successfully, database %s", cfg.Database)
	return New(client, cfg.Database, logger), nil
}

// New wraps an existing client. Close disconnects it.
func New(client *mongo.Client, name string, logger *log.Logger) *Database {
	return &Database{
		client: client,
		db:     client.Database(name),
		logger: logger,
	}
}

// Collection returns a handle on the named collection.
func (d *Database) Collection(name string) *mongo.Collection {
	return d.db.Collection(name)
}

// EnsureCollection creates the named collection with the given validator, or updates the validator if the collection
// already exists, then creates the given indexes. Safe to call on every startup.
func (d *Database) EnsureCollection(ctx context.Context, name string, validator bson.M, indexes []mongo.IndexModel) (*mongo.Collection, error) {
	opts := options.CreateCollection().
		SetValidator(validator).
		SetValidationLevel("strict").
		SetValidationAction("error")

	err := d.db.CreateCollection(ctx, name, opts)
	if err != nil {
		var cmdErr mongo.CommandError
		if !errors.As(err, &cmdErr) || cmdErr.Code != namespaceExistsCode {
			return nil, err
		}
		d.logger.Debugf("Collection %s exists, updating validator", name)
		err = d.db.RunCommand(ctx, bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: validator},
			{Key: "validationLevel", Value: "strict"},
			{Key: "validationAction", Value: "error"},
		}).Err()
		if err != nil {
			return nil, err
		}
	}

	coll := d.db.Collection(name)
	if len(indexes) > 0 {
		if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
			return nil, err
		}
	}
	return coll, nil
}

// Close disconnects the client.
func (d *Database) Close(ctx context.Context) error {
	if err := d.client.Disconnect(ctx); err != nil {
		return err
	}
	d.logger.Info("MongoDB connection closed")
	return nil
}
