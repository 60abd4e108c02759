package passkey

import (
	"bytes"
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	goerrors "github.com/goliatone/go-errors"
)

// RelyingParty identifies this service to authenticators
type RelyingParty struct {
	ID          string
	DisplayName string
	Origins     []string
}

// WebAuthnVerifier implements Verifier with go-webauthn
type WebAuthnVerifier struct {
	wa *webauthn.WebAuthn
}

func NewWebAuthnVerifier(rp RelyingParty) (*WebAuthnVerifier, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          rp.ID,
		RPDisplayName: rp.DisplayName,
		RPOrigins:     rp.Origins,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "invalid relying party configuration")
	}
	return &WebAuthnVerifier{wa: wa}, nil
}

func (v *WebAuthnVerifier) BeginRegistration(subject *Subject) (*Ceremony, error) {
	user := newWebAuthnUser(subject)

	exclusions := make([]protocol.CredentialDescriptor, 0, len(user.credentials))
	for _, c := range user.credentials {
		exclusions = append(exclusions, c.Descriptor())
	}

	options, session, err := v.wa.BeginRegistration(user, webauthn.WithExclusions(exclusions))
	if err != nil {
		return nil, err
	}

	return newCeremony(options, session)
}

func (v *WebAuthnVerifier) FinishRegistration(subject *Subject, rawSession []byte, signed []byte) (*VerifiedCredential, error) {
	session, err := decodeSession(rawSession)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(signed))
	if err != nil {
		return nil, err
	}

	credential, err := v.wa.CreateCredential(newWebAuthnUser(subject), *session, parsed)
	if err != nil {
		return nil, err
	}

	transports := make([]string, 0, len(credential.Transport))
	for _, t := range credential.Transport {
		transports = append(transports, string(t))
	}

	deviceType := "singleDevice"
	if credential.Flags.BackupEligible {
		deviceType = "multiDevice"
	}

	return &VerifiedCredential{
		ID:         EncodeID(credential.ID),
		PublicKey:  credential.PublicKey,
		Counter:    credential.Authenticator.SignCount,
		DeviceType: deviceType,
		BackedUp:   credential.Flags.BackupState,
		Transports: transports,
	}, nil
}

func (v *WebAuthnVerifier) BeginAuthentication(subject *Subject) (*Ceremony, error) {
	options, session, err := v.wa.BeginLogin(newWebAuthnUser(subject))
	if err != nil {
		return nil, err
	}
	return newCeremony(options, session)
}

func (v *WebAuthnVerifier) FinishAuthentication(subject *Subject, rawSession []byte, signed []byte) (*VerifiedAssertion, error) {
	session, err := decodeSession(rawSession)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(signed))
	if err != nil {
		return nil, err
	}

	credential, err := v.wa.ValidateLogin(newWebAuthnUser(subject), *session, parsed)
	if err != nil {
		return nil, err
	}

	return &VerifiedAssertion{
		CredentialID: EncodeID(credential.ID),
		Counter:      credential.Authenticator.SignCount,
		CloneWarning: credential.Authenticator.CloneWarning,
	}, nil
}

func newCeremony(options any, session *webauthn.SessionData) (*Ceremony, error) {
	raw, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	return &Ceremony{
		Options:   options,
		Challenge: session.Challenge,
		Session:   raw,
	}, nil
}

func decodeSession(raw []byte) (*webauthn.SessionData, error) {
	session := &webauthn.SessionData{}
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, err
	}
	return session, nil
}

// webAuthnUser adapts a Subject to webauthn.User
type webAuthnUser struct {
	subject     *Subject
	credentials []webauthn.Credential
}

func newWebAuthnUser(subject *Subject) *webAuthnUser {
	u := &webAuthnUser{subject: subject}

	for _, stored := range subject.Credentials {
		id, err := DecodeID(stored.ID)
		if err != nil {
			continue
		}

		transports := make([]protocol.AuthenticatorTransport, 0, len(stored.Transports))
		for _, t := range stored.Transports {
			transports = append(transports, protocol.AuthenticatorTransport(t))
		}

		u.credentials = append(u.credentials, webauthn.Credential{
			ID:        id,
			PublicKey: stored.PublicKey,
			Transport: transports,
			Flags: webauthn.CredentialFlags{
				BackupEligible: stored.DeviceType == "multiDevice",
				BackupState:    stored.BackedUp,
			},
			Authenticator: webauthn.Authenticator{
				SignCount: uint32(stored.Counter),
			},
		})
	}

	return u
}

func (u *webAuthnUser) WebAuthnID() []byte {
	return u.subject.Handle
}

func (u *webAuthnUser) WebAuthnName() string {
	return u.subject.Name
}

func (u *webAuthnUser) WebAuthnDisplayName() string {
	return u.subject.DisplayName
}

func (u *webAuthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}
