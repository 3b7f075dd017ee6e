package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

type AuthControllerRoutes struct {
	Auth         string
	Admin        string
	Register     string
	Login        string
	Refresh      string
	Logout       string
	Me           string
	CheckStatus  string
	Users        string
	PendingUsers string
	UserStatus   string
	Approve      string
	Reject       string
	Block        string
}

type AuthController struct {
	Debug   bool
	Logger  Logger
	Service *AccountService
	Routes  *AuthControllerRoutes
	Auther  *RouteAuthenticator
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerService sets the account service.
func WithControllerService(service *AccountService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Service = service
		return c
	}
}

// WithControllerAuthenticator sets the gate middleware builder.
func WithControllerAuthenticator(auther *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerDebug enables payload dumps in debug logs.
func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Auth:         "/api/auth",
			Admin:        "/api/admin",
			Register:     "/register",
			Login:        "/login",
			Refresh:      "/refresh",
			Logout:       "/logout",
			Me:           "/me",
			CheckStatus:  "/check-status",
			Users:        "/users",
			PendingUsers: "/pending-users",
			UserStatus:   "/users/:id/status",
			Approve:      "/users/:id/approve",
			Reject:       "/users/:id/reject",
			Block:        "/users/:id/block",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing AccountService in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

// RegisterRoutes mounts the auth and admin endpoints on r.
func (a *AuthController) RegisterRoutes(r fiber.Router) {
	authed := a.Auther.ProtectedRoute(nil)
	waiting := a.Auther.WaitingRoute()
	admins := a.Auther.ProtectedRoute(TierAdmin)
	heads := a.Auther.ProtectedRoute(TierDepartmentHead)

	auth := r.Group(a.Routes.Auth)
	auth.Post(a.Routes.Register, a.Register).Name("auth.register")
	auth.Post(a.Routes.Login, a.Login).Name("auth.login")
	auth.Post(a.Routes.Refresh, a.Refresh).Name("auth.refresh")
	auth.Post(a.Routes.Logout, authed, a.Logout).Name("auth.logout")
	auth.Get(a.Routes.Me, authed, a.Me).Name("auth.me")
	auth.Get(a.Routes.CheckStatus, waiting, a.CheckStatus).Name("auth.check-status")

	admin := r.Group(a.Routes.Admin)
	admin.Get(a.Routes.Users, admins, a.ListUsers).Name("admin.users")
	admin.Get(a.Routes.PendingUsers, admins, a.PendingUsers).Name("admin.pending-users")
	admin.Put(a.Routes.UserStatus, heads, a.UpdateStatus).Name("admin.user-status")
	admin.Post(a.Routes.Approve, heads, a.Approve).Name("admin.approve")
	admin.Post(a.Routes.Reject, admins, a.Reject).Name("admin.reject")
	admin.Post(a.Routes.Block, admins, a.Block).Name("admin.block")
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	payload := new(RegisterRequest)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	a.dump("register payload", RegisterRequest{
		Email:    payload.Email,
		FullName: payload.FullName,
		Role:     payload.Role,
		Course:   payload.Course,
		Group:    payload.Group,
	})

	result, err := a.Service.Register(c.UserContext(), *payload)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	result, err := a.Service.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

func (a *AuthController) Refresh(c *fiber.Ctx) error {
	payload := new(RefreshRequest)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	pair, err := a.Service.Refresh(c.UserContext(), payload.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(pair)
}

func (a *AuthController) Logout(c *fiber.Ctx) error {
	p, err := a.principal(c)
	if err != nil {
		return err
	}

	payload := new(LogoutRequest)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	if err := a.Service.Logout(c.UserContext(), p.Token, payload.RefreshToken); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Успешный выход из системы",
	})
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	p, err := a.principal(c)
	if err != nil {
		return err
	}
	return c.JSON(p.User)
}

func (a *AuthController) CheckStatus(c *fiber.Ctx) error {
	p, err := a.principal(c)
	if err != nil {
		return err
	}
	return c.JSON(a.Service.CheckStatus(p.User))
}

func (a *AuthController) ListUsers(c *fiber.Ctx) error {
	p, err := a.principal(c)
	if err != nil {
		return err
	}

	page, err := a.Service.ListUsers(c.UserContext(), p.User, UserFilter{
		Status: UserStatus(strings.TrimSpace(c.Query("status"))),
		Role:   UserRole(strings.TrimSpace(c.Query("role"))),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", DefaultPageLimit),
	})
	if err != nil {
		return err
	}

	return c.JSON(page)
}

func (a *AuthController) PendingUsers(c *fiber.Ctx) error {
	p, err := a.principal(c)
	if err != nil {
		return err
	}

	page, err := a.Service.PendingUsers(c.UserContext(), p.User,
		c.QueryInt("page", 1),
		c.QueryInt("limit", DefaultPageLimit),
	)
	if err != nil {
		return err
	}

	return c.JSON(page)
}

func (a *AuthController) UpdateStatus(c *fiber.Ctx) error {
	p, id, err := a.principalAndTarget(c)
	if err != nil {
		return err
	}

	payload := new(StatusUpdateRequest)
	if err := a.bind(c, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	user, err := a.Service.ChangeStatus(c.UserContext(), p.User, id, UserStatus(payload.Status))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Статус пользователя обновлен на " + string(user.Status),
		"user":    user,
	})
}

func (a *AuthController) Approve(c *fiber.Ctx) error {
	p, id, err := a.principalAndTarget(c)
	if err != nil {
		return err
	}

	user, err := a.Service.Approve(c.UserContext(), p.User, id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Пользователь " + user.Email + " подтвержден",
		"user":    user,
	})
}

func (a *AuthController) Reject(c *fiber.Ctx) error {
	p, id, err := a.principalAndTarget(c)
	if err != nil {
		return err
	}

	user, err := a.Service.Reject(c.UserContext(), p.User, id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Пользователь " + user.Email + " отклонен",
		"user":    user,
	})
}

func (a *AuthController) Block(c *fiber.Ctx) error {
	p, id, err := a.principalAndTarget(c)
	if err != nil {
		return err
	}

	user, err := a.Service.Block(c.UserContext(), p.User, id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Пользователь " + user.Email + " заблокирован",
		"user":    user,
	})
}

// bind leaves payload untouched when the body is empty so the payload
// validation reports the missing fields.
func (a *AuthController) bind(c *fiber.Ctx, payload any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Debug("failed to parse payload for %s: %v", c.Path(), err)
		return validationError("Некорректное тело запроса").
			WithMetadata(map[string]any{"cause": err.Error()})
	}
	return nil
}

func (a *AuthController) principal(c *fiber.Ctx) (*Principal, error) {
	p, ok := GetPrincipal(c, a.Auther.ContextKey())
	if !ok {
		return nil, unauthenticatedError(msgAuthRequired, nil)
	}
	return p, nil
}

func (a *AuthController) principalAndTarget(c *fiber.Ctx) (*Principal, uuid.UUID, error) {
	p, err := a.principal(c)
	if err != nil {
		return nil, uuid.Nil, err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, uuid.Nil, notFoundError(msgUserNotFound).
			WithMetadata(map[string]any{"id": c.Params("id")})
	}

	return p, id, nil
}

func (a *AuthController) dump(label string, v any) {
	if !a.Debug {
		return
	}
	a.Logger.Debug("%s: %s", label, print.MaybePrettyJSON(v))
}
