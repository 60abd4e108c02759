package passkey

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
)

// Subject is the account a ceremony runs for
type Subject struct {
	Handle      []byte
	Name        string
	DisplayName string
	Credentials []*auth.PasskeyCredential
}

// Ceremony is what a begin step hands back: the options for the browser and
// the opaque state needed to finish.
type Ceremony struct {
	Options   any
	Challenge string
	Session   []byte
}

// VerifiedCredential is a registration response that passed verification
type VerifiedCredential struct {
	ID         string
	PublicKey  []byte
	Counter    uint32
	DeviceType string
	BackedUp   bool
	Transports []string
}

// VerifiedAssertion is an authentication response that passed verification
type VerifiedAssertion struct {
	CredentialID string
	Counter      uint32
	CloneWarning bool
}

// Verifier wraps the WebAuthn primitives. Finish methods must reject any
// response not bound to the session challenge, origin and relying party.
type Verifier interface {
	BeginRegistration(subject *Subject) (*Ceremony, error)
	FinishRegistration(subject *Subject, session []byte, signed []byte) (*VerifiedCredential, error)
	BeginAuthentication(subject *Subject) (*Ceremony, error)
	FinishAuthentication(subject *Subject, session []byte, signed []byte) (*VerifiedAssertion, error)
}

// SignedResponse is the minimum shape of a browser credential response.
// It is checked before anything else reads the body.
type SignedResponse struct {
	ID       string          `json:"id"`
	RawID    string          `json:"rawId"`
	Type     string          `json:"type"`
	Response json.RawMessage `json:"response"`
}

func (s SignedResponse) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required),
		validation.Field(&s.RawID, validation.Required),
		validation.Field(&s.Type, validation.Required, validation.In("public-key")),
		validation.Field(&s.Response, validation.Required, validation.By(isJSONObject)),
	)
}

// ParseSignedResponse decodes and validates a credential response body
func ParseSignedResponse(raw []byte) (*SignedResponse, error) {
	out := &SignedResponse{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, auth.NewValidationError(validation.Errors{
			"signed": errors.New("must be a JSON object"),
		})
	}
	if err := out.Validate(); err != nil {
		return nil, auth.NewValidationError(err)
	}
	return out, nil
}

func isJSONObject(value any) error {
	raw, _ := value.(json.RawMessage)
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return errors.New("must be a JSON object")
	}
	return nil
}

// EncodeID is the storage form of credential ids and user handles
func EncodeID(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeID reverses EncodeID
func DecodeID(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
