package auth

import (
	"errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/caffeine-addictt/greenbitessg-sub000/middleware/jwtware"
)

// RouteRegistrar captures the router methods used by the controllers
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// RouteModule mounts additional routes on the auth group, used by the
// passkey controller.
type RouteModule interface {
	Register(group RouteRegistrar, controller *AuthController)
}

func RegisterAuthRoutes[T any](app router.Router[T], controller *AuthController, modules ...RouteModule) {
	group := app.Group(controller.Routes.Prefix)

	group.Post("/register", controller.Register).SetName("auth.register")
	group.Post("/login", controller.Login).SetName("auth.login")
	group.Get("/availability", controller.Availability).SetName("auth.availability")

	refresh := controller.Protected(GateOptions{Kind: TokenKindRefresh})
	group.Post("/refresh", controller.Refresh, refresh).SetName("auth.refresh")
	group.Post("/invalidate", controller.Invalidate, refresh).SetName("auth.invalidate")

	access := controller.Protected(GateOptions{Kind: TokenKindAccess})
	group.Get("/me", controller.Me, access).SetName("auth.me")
	group.Post("/activate", controller.Activate, access).SetName("auth.activate")
	group.Post("/tokens/resend", controller.ResendToken, access).SetName("auth.tokens.resend")
	group.Post("/verify/request", controller.RequestVerification, access).SetName("auth.verify.request")
	group.Post("/verify", controller.ConfirmVerification, access).SetName("auth.verify")

	fresh := controller.Protected(GateOptions{Kind: TokenKindAccess, RequireFresh: true})
	group.Post("/password", controller.ChangePassword, fresh).SetName("auth.password")

	admin := controller.Protected(GateOptions{Kind: TokenKindAccess, RequireAdmin: true})
	group.Post("/admin/sweep", controller.Sweep, admin).SetName("auth.admin.sweep")

	for _, m := range modules {
		m.Register(group, controller)
	}
}

type AuthControllerRoutes struct {
	Prefix string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Auther       *Auther
	Sweeper      *Sweeper
	Routes       *AuthControllerRoutes
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithSweeper enables the admin sweep route
func WithSweeper(s *Sweeper) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Sweeper = s
		return c
	}
}

// WithRoutePrefix mounts the routes under prefix
func WithRoutePrefix(prefix string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Routes.Prefix = prefix
		return c
	}
}

// WithDebug dumps request payloads to the logger
func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// WithErrorHandler replaces the handler that renders failed requests
func WithErrorHandler(handler router.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

func NewAuthController(auther *Auther, opts ...AuthControllerOption) *AuthController {
	if auther == nil {
		panic("Missing Auther in auth controller...")
	}

	c := &AuthController{
		Logger: defLogger{},
		Auther: auther,
		Routes: &AuthControllerRoutes{
			Prefix: "/v1/auth",
		},
	}
	c.ErrorHandler = c.defaultErrHandler

	for _, opt := range opts {
		c = opt(c)
	}

	return c
}

// defaultErrHandler renders err in the error envelope. Errors hidden behind
// ErrInternal are logged first.
func (a *AuthController) defaultErrHandler(c router.Context, err error) error {
	if PublicError(err) == ErrInternal {
		logFailure(a.Logger, c.Method(), c.Path(), err)
	}
	return SendError(c, err)
}

// Protected returns the gate middleware for the given requirements
func (a *AuthController) Protected(opts GateOptions) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		Authenticator: a.Auther.Gate(),
		Requirements: jwtware.Requirements{
			Kind:         string(opts.Kind),
			AllowExpired: opts.AllowExpired,
			RequireFresh: opts.RequireFresh,
			RequireAdmin: opts.RequireAdmin,
		},
		ErrorHandler: func(c router.Context, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				err = ErrNoToken
			}
			return a.ErrorHandler(c, err)
		},
	})
}

// UserFromRouter returns the user attached by the gate
func UserFromRouter(c router.Context) (*User, bool) {
	return FromContext(c.Context())
}

// ClaimsFromRouter returns the claims of the token accepted by the gate
func ClaimsFromRouter(c router.Context) (*TokenClaims, bool) {
	return GetClaims(c.Context())
}

// BindPayload parses the body into payload and runs its Validate method
func BindPayload(c router.Context, payload validation.Validatable) error {
	if err := c.Bind(payload); err != nil {
		return ErrInvalidBody
	}
	if err := payload.Validate(); err != nil {
		return NewValidationError(err)
	}
	return nil
}

func (a *AuthController) debug(label string, v any) {
	if a.Debug {
		a.Logger.Debug("%s: %s", label, print.MaybePrettyJSON(v))
	}
}

// RegisterPayload is the registration body
type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *RegisterPayload) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, UsernameRules...),
		validation.Field(&r.Email, EmailRules...),
		validation.Field(&r.Password, PasswordRules...),
	)
}

func (a *AuthController) Register(c router.Context) error {
	payload := new(RegisterPayload)
	if err := BindPayload(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	a.debug("register", map[string]any{"username": payload.Username, "email": payload.Email})

	var res *RegisterUserResponse
	err := a.Auther.RegisterUserHandler().Execute(c.Context(), RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		OnResponse: func(r *RegisterUserResponse) {
			res = r
		},
	})
	if err != nil {
		if res != nil {
			a.Logger.Warn("user %s registered without activation email", res.User.ID)
		}
		return a.ErrorHandler(c, err)
	}

	return SendData(c, http.StatusCreated, res.User)
}

// LoginPayload is the login body
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginPayload) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) Login(c router.Context) error {
	payload := new(LoginPayload)
	if err := BindPayload(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	pair, _, err := a.Auther.Login(c.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return SendData(c, http.StatusOK, pair)
}

func (a *AuthController) Availability(c router.Context) error {
	username, email := c.Query("username"), c.Query("email")
	if username == "" && email == "" {
		return a.ErrorHandler(c, NewValidationError(validation.Errors{
			"username": errors.New("username or email is required"),
		}))
	}

	out, err := a.Auther.Availability(c.Context(), username, email)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return SendData(c, http.StatusOK, out)
}

// TokenPairPayload carries the access token that is retired together with
// the refresh token in the Authorization header.
type TokenPairPayload struct {
	AccessToken string `json:"access_token"`
}

func (r *TokenPairPayload) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AccessToken, validation.Required),
	)
}

func (a *AuthController) Refresh(c router.Context) error {
	payload := new(TokenPairPayload)
	if err := BindPayload(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	claims, _ := ClaimsFromRouter(c)

	pair, err := a.Auther.Refresh(c.Context(), claims, payload.AccessToken)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return SendData(c, http.StatusOK, pair)
}

func (a *AuthController) Invalidate(c router.Context) error {
	payload := new(TokenPairPayload)
	if err := BindPayload(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	claims, _ := ClaimsFromRouter(c)

	if err := a.Auther.Invalidate(c.Context(), claims, payload.AccessToken); err != nil {
		return a.ErrorHandler(c, err)
	}

	return SendData(c, http.StatusOK, nil)
}

func (a *AuthController) Me(c router.Context) error {
	user, ok := UserFromRouter(c)
	if !ok {
		return a.ErrorHandler(c, ErrUserNotFound)
	}
	return SendData(c, http.StatusOK, user)
}

// TokenPayload carries a short lived token
type TokenPayload struct {
	Token string `json:"token"`
}

func (r *TokenPayload) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AuthController) Activate(c router.Context) error {
	payload := new(TokenPayload)
	if err := BindPayload(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	user, _ := UserFromRouter(c)

	err := a.Auther.ActivateAccountHandler().Execute(c.Context(), ActivateAccountMessage{
		User:  user,
		Token: payload.Token,
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return SendData(c, http.StatusOK, user)
}

// ResendPayload selects which token to resend
type ResendPayload struct {
	Type TokenType `json:"type"`
}

func (r *ResendPayload) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Type,
			validation.Required,
			validation.In(TokenTypeActivation, TokenTypeVerification),
		),
	)
}

func (a *AuthController) ResendToken(c router.Context) error {
	payload := new(ResendPayload)
	if err := BindPayload(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	user, _ := UserFromRouter(c)

	err := a.Auther.RecreateTokenHandler().Execute(c.Context(), RecreateTokenMessage{
		User:      user,
		TokenType: payload.Type,
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return SendData(c, http.StatusOK, nil)
}

func (a *AuthController) RequestVerification(c router.Context) error {
	user, _ := UserFromRouter(c)

	err := a.Auther.RecreateTokenHandler().Execute(c.Context(), RecreateTokenMessage{
		User:       user,
		TokenType:  TokenTypeVerification,
		AllowFirst: true,
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return SendData(c, http.StatusOK, nil)
}

func (a *AuthController) ConfirmVerification(c router.Context) error {
	payload := new(TokenPayload)
	if err := BindPayload(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	user, _ := UserFromRouter(c)

	err := a.Auther.ConfirmVerificationHandler().Execute(c.Context(), ConfirmVerificationMessage{
		User:  user,
		Token: payload.Token,
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return SendData(c, http.StatusOK, nil)
}

// ChangePasswordPayload is the change password body
type ChangePasswordPayload struct {
	OldPassword     string `json:"old_password"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate only checks presence, the command applies the password rules
func (r *ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.ConfirmPassword, validation.Required),
	)
}

func (a *AuthController) ChangePassword(c router.Context) error {
	payload := new(ChangePasswordPayload)
	if err := BindPayload(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	user, _ := UserFromRouter(c)

	err := a.Auther.ChangePasswordHandler().Execute(c.Context(), ChangePasswordMessage{
		User:            user,
		OldPassword:     payload.OldPassword,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return SendData(c, http.StatusOK, nil)
}

func (a *AuthController) Sweep(c router.Context) error {
	if a.Sweeper == nil {
		return a.ErrorHandler(c, ErrRouteDisabled)
	}

	counts, err := a.Sweeper.RunOnce(c.Context())
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	a.Logger.Info("manual sweep: %s", fmt.Sprint(counts))

	return SendData(c, http.StatusOK, counts)
}
