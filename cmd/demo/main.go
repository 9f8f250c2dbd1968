// Command demo walks a single user through its whole lifecycle: insert, find, update, list, delete, list.
// The connection is closed on every exit path.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"github.com/NeRF-or-Nothing/user-store/internal/config"
	"github.com/NeRF-or-Nothing/user-store/internal/database"
	"github.com/NeRF-or-Nothing/user-store/internal/log"
	"github.com/NeRF-or-Nothing/user-store/internal/models/user"
	"github.com/NeRF-or-Nothing/user-store/internal/services"
)

func main() {
	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		panic(fmt.Sprintf("Error loading configuration: %s", err))
	}

	logger, err := log.NewLogger(true, cfg.Logging.Debug, cfg.Logging.OutputPaths...)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.Mongo, logger)
	if err != nil {
		logger.Fatal("MongoDB connection error:", err)
	}
	defer db.Close(context.Background())

	if err := run(ctx, db, cfg.Mongo.Collection, logger); err != nil {
		logger.Error("Error in demo:", err)
	}
}

func run(ctx context.Context, db *database.Database, collectionName string, logger *log.Logger) error {
	collection, err := db.EnsureCollection(ctx, collectionName, user.CollectionValidator(), user.Indexes())
	if err != nil {
		return err
	}
	userService := services.NewUserService(user.NewUserManager(collection, logger), nil, logger)

	// Random email to avoid duplicate key errors across runs
	email := fmt.Sprintf("vatsal%d@gmail.com", rand.Intn(10000))

	if _, err := userService.InsertUser(ctx, user.Candidate{Name: "vatsal", Email: email, Age: user.Int(18)}); err != nil {
		return err
	}
	if _, _, err := userService.FindUserByEmail(ctx, email); err != nil {
		return err
	}
	if _, _, err := userService.UpdateUserByEmail(ctx, email, user.Patch{Age: user.Int(19), Name: user.String("vatsalupdated")}); err != nil {
		return err
	}
	if _, err := userService.ListUsers(ctx); err != nil {
		return err
	}
	if _, _, err := userService.DeleteUserByEmail(ctx, email); err != nil {
		return err
	}
	_, err = userService.ListUsers(ctx)
	return err
}
