package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/golang-jwt/jwt"

	"github.com/NeRF-or-Nothing/user-store/internal/common"
	"github.com/NeRF-or-Nothing/user-store/internal/log"
	"github.com/NeRF-or-Nothing/user-store/internal/models/user"
)

// UserService is what the web server needs from the service layer. *services.UserService implements it.
type UserService interface {
	InsertUser(ctx context.Context, candidate user.Candidate) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error)
	UpdateUserByEmail(ctx context.Context, email string, patch user.Patch) (*user.User, bool, error)
	DeleteUserByEmail(ctx context.Context, email string) (*user.User, bool, error)
}

type WebServer struct {
	jwtSecret   string
	app         *fiber.App
	userService UserService
	logger      *log.Logger
}

// NewWebServer creates the web server and registers its routes. If jwtSecret is empty, mutating routes are
// not protected.
func NewWebServer(jwtSecret string, userService UserService, logger *log.Logger) *WebServer {
	app := fiber.New(fiber.Config{
		UnescapePath: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Authorization, Content-Type",
	}))

	s := &WebServer{
		jwtSecret:   jwtSecret,
		app:         app,
		userService: userService,
		logger:      logger,
	}
	s.SetupRoutes()
	return s
}

func (s *WebServer) Run(ip string, port int) error {
	return s.app.Listen(ip + ":" + strconv.Itoa(port))
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *WebServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *WebServer) SetupRoutes() {
	s.app.Get("/routes", s.getRoutes)
	s.app.Get("/health", s.healthCheck)
	s.app.Get("/users", s.listUsers)
	s.app.Get("/users/:email", s.getUser)
	s.app.Post("/users", s.tokenRequired(s.createUser))
	s.app.Patch("/users/:email", s.tokenRequired(s.updateUser))
	s.app.Delete("/users/:email", s.tokenRequired(s.deleteUser))
}

func (s *WebServer) tokenRequired(handler fiber.Handler) fiber.Handler {
	if s.jwtSecret == "" {
		return handler
	}
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			s.logger.Info("Missing Authorization header")
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Missing Authorization header"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.logger.Info("Invalid Authorization header format. Expected: `Bearer <token>`")
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid Authorization header format. Expected: `Bearer <token>`"})
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(s.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			s.logger.Info("Invalid token")
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			s.logger.Info("Invalid token claims")
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
		}
		subject, ok := claims["sub"].(string)
		if !ok || subject == "" {
			s.logger.Info("Missing subject in token")
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Missing subject in token"})
		}

		c.Locals("subject", subject)
		return handler(c)
	}
}

// errorResponse maps service errors to HTTP responses.
func (s *WebServer) errorResponse(c *fiber.Ctx, err error) error {
	var verr *user.ValidationError
	var uerr *user.UniquenessError
	switch {
	case errors.As(err, &verr):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": verr.Error(), "violations": verr.Violations})
	case errors.As(err, &uerr):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": uerr.Error()})
	default:
		s.logger.Errorf("Request failed: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}

func notFound(c *fiber.Ctx) error {
	return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
}

func (s *WebServer) createUser(c *fiber.Ctx) error {
	s.logger.Info("Create user request received")

	var req common.CreateUserRequest
	if err := ValidateRequest(c, &req); err != nil {
		s.logger.Infof("Create user request validation failed: %v", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	u, err := s.userService.InsertUser(c.UserContext(), user.Candidate{Name: req.Name, Email: req.Email, Age: req.Age})
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{"user": u})
}

func (s *WebServer) listUsers(c *fiber.Ctx) error {
	users, err := s.userService.ListUsers(c.UserContext())
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"users": users})
}

func (s *WebServer) getUser(c *fiber.Ctx) error {
	var req common.UserEmailRequest
	if err := ValidateRequest(c, &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	u, found, err := s.userService.FindUserByEmail(c.UserContext(), req.Email)
	if err != nil {
		return s.errorResponse(c, err)
	}
	if !found {
		return notFound(c)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"user": u})
}

func (s *WebServer) updateUser(c *fiber.Ctx) error {
	s.logger.Info("Update user request received")

	var req common.UpdateUserRequest
	if err := ValidateRequest(c, &req); err != nil {
		s.logger.Infof("Update user request validation failed: %v", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	u, found, err := s.userService.UpdateUserByEmail(c.UserContext(), req.Email, user.Patch{Name: req.Name, Age: req.Age})
	if err != nil {
		return s.errorResponse(c, err)
	}
	if !found {
		return notFound(c)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"user": u})
}

func (s *WebServer) deleteUser(c *fiber.Ctx) error {
	s.logger.Info("Delete user request received")

	var req common.UserEmailRequest
	if err := ValidateRequest(c, &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	u, found, err := s.userService.DeleteUserByEmail(c.UserContext(), req.Email)
	if err != nil {
		return s.errorResponse(c, err)
	}
	if !found {
		return notFound(c)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"user": u})
}

func (s *WebServer) getRoutes(c *fiber.Ctx) error {
	routes := s.app.GetRoutes(true)
	return c.Status(http.StatusOK).JSON(routes)
}

func (s *WebServer) healthCheck(c *fiber.Ctx) error {
	return c.SendString("OK")
}
