package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/NeRF-or-Nothing/user-store/internal/log"
	"github.com/NeRF-or-Nothing/user-store/internal/models/user"
)

// Event types published after a successful mutation.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// UserEvent describes a change to a user record.
type UserEvent struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Email      string     `json:"email"`
	OccurredAt time.Time  `json:"occurred_at"`
	User       *user.User `json:"user"`
}

func newUserEvent(eventType string, u *user.User) UserEvent {
	return UserEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Email:      u.Email,
		OccurredAt: time.Now().UTC(),
		User:       u,
	}
}

// UserStore is the storage the UserService operates on. *user.UserManager implements it.
type UserStore interface {
	Insert(ctx context.Context, candidate user.Candidate) (*user.User, error)
	List(ctx context.Context) ([]user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, bool, error)
	UpdateByEmail(ctx context.Context, email string, patch user.Patch) (*user.User, bool, error)
	DeleteByEmail(ctx context.Context, email string) (*user.User, bool, error)
}

// EventPublisher publishes user change events. *AMPQService implements it.
type EventPublisher interface {
	PublishUserEvent(ctx context.Context, event UserEvent) error
}

type UserService struct {
	store     UserStore
	publisher EventPublisher
	logger    *log.Logger
}

// NewUserService creates a UserService. publisher may be nil, in which case no events are published.
func NewUserService(store UserStore, publisher EventPublisher, logger *log.Logger) *UserService {
	return &UserService{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// publish sends an event if a publisher is configured. Failures are logged and never fail the operation,
// since the database write already happened.
func (s *UserService) publish(ctx context.Context, eventType string, u *user.User) {
	if s.publisher == nil {
		return
	}
	event := newUserEvent(eventType, u)
	if err := s.publisher.PublishUserEvent(ctx, event); err != nil {
		s.logger.Errorf("Failed to publish %s event %s: %v", eventType, event.ID, err)
	}
}

// InsertUser validates and stores a new user.
func (s *UserService) InsertUser(ctx context.Context, candidate user.Candidate) (*user.User, error) {
	u, err := s.store.Insert(ctx, candidate)
	if err != nil {
		s.logger.Infof("Error saving user: %v", err)
		return nil, err
	}
	s.logger.Infow("User saved", "id", u.ID.Hex(), "email", u.Email)
	s.publish(ctx, EventUserCreated, u)
	return u, nil
}

// ListUsers returns all users.
func (s *UserService) ListUsers(ctx context.Context) ([]user.User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		s.logger.Errorf("Error fetching users: %v", err)
		return nil, err
	}
	s.logger.Infow("All users", "count", len(users))
	return users, nil
}

// FindUserByEmail returns the user with the given email. found is false if there is none.
func (s *UserService) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	u, found, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		s.logger.Errorf("Error finding user: %v", err)
		return nil, false, err
	}
	s.logger.Infow("User lookup", "email", email, "found", found)
	return u, found, nil
}

// UpdateUserByEmail applies patch to the user with the given email. found is false if there is none.
func (s *UserService) UpdateUserByEmail(ctx context.Context, email string, patch user.Patch) (*user.User, bool, error) {
	u, found, err := s.store.UpdateByEmail(ctx, email, patch)
	if err != nil {
		s.logger.Infof("Error updating user: %v", err)
		return nil, false, err
	}
	s.logger.Infow("User updated", "email", email, "found", found)
	if found && !patch.IsEmpty() {
		s.publish(ctx, EventUserUpdated, u)
	}
	return u, found, nil
}

// DeleteUserByEmail deletes the user with the given email. found is false if there is none.
func (s *UserService) DeleteUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	u, found, err := s.store.DeleteByEmail(ctx, email)
	if err != nil {
		s.logger.Errorf("Error deleting user: %v", err)
		return nil, false, err
	}
	s.logger.Infow("User deleted", "email", email, "found", found)
	if found {
		s.publish(ctx, EventUserDeleted, u)
	}
	return u, found, nil
}
