package passkey

import (
	"encoding/json"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-router"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
)

// Controller exposes the engine over HTTP. It mounts on the auth route
// group and reuses its gate.
type Controller struct {
	engine  *Engine
	onError router.ErrorHandler
}

var _ auth.RouteModule = (*Controller)(nil)

func NewController(engine *Engine) *Controller {
	return &Controller{
		engine:  engine,
		onError: auth.SendError,
	}
}

// Register mounts the passkey routes. Failures are rendered by the auth
// controller error handler.
func (p *Controller) Register(group auth.RouteRegistrar, controller *auth.AuthController) {
	if controller.ErrorHandler != nil {
		p.onError = controller.ErrorHandler
	}

	access := controller.Protected(auth.GateOptions{Kind: auth.TokenKindAccess})
	fresh := controller.Protected(auth.GateOptions{Kind: auth.TokenKindAccess, RequireFresh: true})

	group.Post("/passkey/register/start", p.RegisterStart, access).SetName("passkey.register.start")
	group.Post("/passkey/register/finish", p.RegisterFinish, access).SetName("passkey.register.finish")
	group.Post("/passkey/authenticate/start", p.AuthenticateStart).SetName("passkey.authenticate.start")
	group.Post("/passkey/authenticate/finish", p.AuthenticateFinish).SetName("passkey.authenticate.finish")
	group.Get("/passkeys", p.List, access).SetName("passkey.list")
	group.Delete("/passkeys/:id", p.Delete, fresh).SetName("passkey.delete")
}

// FinishPayload carries the track and the raw browser response
type FinishPayload struct {
	Track  string          `json:"track"`
	Signed json.RawMessage `json:"signed"`
}

func (r *FinishPayload) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Track, validation.Required),
		validation.Field(&r.Signed, validation.Required),
	)
}

// AuthenticateStartPayload names the account to log into
type AuthenticateStartPayload struct {
	Email string `json:"email"`
}

func (r *AuthenticateStartPayload) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (p *Controller) RegisterStart(c router.Context) error {
	user, _ := auth.UserFromRouter(c)

	start, err := p.engine.BeginRegistration(c.Context(), user)
	if err != nil {
		return p.onError(c, err)
	}

	return auth.SendData(c, http.StatusOK, start)
}

func (p *Controller) RegisterFinish(c router.Context) error {
	payload := new(FinishPayload)
	if err := auth.BindPayload(c, payload); err != nil {
		return p.onError(c, err)
	}

	user, _ := auth.UserFromRouter(c)

	credential, err := p.engine.FinishRegistration(c.Context(), user, payload.Track, payload.Signed)
	if err != nil {
		return p.onError(c, err)
	}

	return auth.SendData(c, http.StatusCreated, credential)
}

func (p *Controller) AuthenticateStart(c router.Context) error {
	payload := new(AuthenticateStartPayload)
	if err := auth.BindPayload(c, payload); err != nil {
		return p.onError(c, err)
	}

	start, err := p.engine.BeginAuthentication(c.Context(), payload.Email)
	if err != nil {
		return p.onError(c, err)
	}

	return auth.SendData(c, http.StatusOK, start)
}

func (p *Controller) AuthenticateFinish(c router.Context) error {
	payload := new(FinishPayload)
	if err := auth.BindPayload(c, payload); err != nil {
		return p.onError(c, err)
	}

	pair, err := p.engine.FinishAuthentication(c.Context(), payload.Track, payload.Signed)
	if err != nil {
		return p.onError(c, err)
	}

	return auth.SendData(c, http.StatusOK, pair)
}

func (p *Controller) List(c router.Context) error {
	user, _ := auth.UserFromRouter(c)

	credentials, err := p.engine.List(c.Context(), user)
	if err != nil {
		return p.onError(c, err)
	}

	return auth.SendData(c, http.StatusOK, credentials)
}

func (p *Controller) Delete(c router.Context) error {
	user, _ := auth.UserFromRouter(c)

	if err := p.engine.Delete(c.Context(), user, c.Param("id")); err != nil {
		return p.onError(c, err)
	}

	return auth.SendData(c, http.StatusOK, nil)
}
