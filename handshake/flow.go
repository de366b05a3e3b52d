package handshake

import (
	"context"
	"net/http"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-sso-service/handshake/authrequests"
	"github.com/jrsteele09/go-sso-service/identity"
	"github.com/jrsteele09/go-sso-service/internal/errors"
)

const stateGenerationLength = 24

// Flow is the RP half of the Handshake Coordinator. Begin records an
// in-flight authorization request and produces the IdP redirect target;
// Complete consumes the callback exactly once and exchanges the code for
// identity claims.
type Flow struct {
	oauthConfig *oauth2.Config
	requests    authrequests.Repo
	requestTTL  time.Duration
	nowTime     func() time.Time
}

// FlowOption modifies a Flow instance.
type FlowOption func(*Flow)

// FlowWithNowTime sets the now time function (primarily for testing)
func FlowWithNowTime(nowFunc func() time.Time) FlowOption {
	return func(f *Flow) {
		f.nowTime = nowFunc
	}
}

func NewFlow(oauthConfig *oauth2.Config, requests authrequests.Repo, requestTTL time.Duration, options ...FlowOption) (*Flow, error) {
	if oauthConfig == nil {
		return nil, pkgerrors.New("[NewFlow] oauthConfig is required")
	}
	if requests == nil {
		return nil, pkgerrors.New("[NewFlow] requests repo is required")
	}

	f := &Flow{
		oauthConfig: oauthConfig,
		requests:    requests,
		requestTTL:  requestTTL,
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(f)
	}
	return f, nil
}

// Begin moves a login attempt from INIT to REQUESTED: it generates the
// state and nonce, records the pending request, and returns the IdP
// authorization URL the browser should open.
func (f *Flow) Begin() (string, error) {
	state, err := randomValue(stateGenerationLength)
	if err != nil {
		return "", pkgerrors.Wrap(err, "[Flow.Begin] state generation")
	}
	nonce, err := randomValue(stateGenerationLength)
	if err != nil {
		return "", pkgerrors.Wrap(err, "[Flow.Begin] nonce generation")
	}

	request := &authrequests.Request{
		State:     state,
		Nonce:     nonce,
		Status:    authrequests.StateInit,
		CreatedAt: f.nowTime(),
	}
	request.Advance(authrequests.StateRequested)
	if err := f.requests.Upsert(state, request); err != nil {
		return "", pkgerrors.Wrap(err, "[Flow.Begin] recording authorization request")
	}

	return f.oauthConfig.AuthCodeURL(state, oauth2.SetAuthURLParam("nonce", nonce)), nil
}

// Complete consumes the callback for a pending request. The request is
// deleted on success and on failure - it is strictly single-use. The code
// is exchanged with the IdP's token endpoint and the echoed nonce must
// match the one recorded at Begin.
func (f *Flow) Complete(ctx context.Context, code, state string) (identity.Claims, error) {
	// Single-use: the request is claimed atomically and is gone regardless
	// of the attempt's outcome.
	request, err := f.requests.Consume(state)
	if err != nil {
		return identity.Claims{}, errors.ErrInvalidState
	}
	request.Advance(authrequests.StateCodeIssued)
	defer func() {
		log.Debug().Str("status", string(request.Status)).Msg("handshake attempt finished")
	}()

	fail := func(err error) (identity.Claims, error) {
		request.Advance(authrequests.StateFailed)
		return identity.Claims{}, err
	}

	if f.nowTime().Sub(request.CreatedAt) > f.requestTTL {
		return fail(errors.ErrInvalidState)
	}

	token, err := f.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return fail(exchangeError(err))
	}
	request.Advance(authrequests.StateExchanged)

	if extraString(token, "nonce") != request.Nonce {
		return fail(errors.ErrNonceMismatch)
	}

	claims := identity.Claims{
		Subject:     extraString(token, "subject"),
		Username:    extraString(token, "username"),
		DisplayName: extraString(token, "display_name"),
		Attributes:  extraStringMap(token, "attributes"),
	}
	if claims.Subject == "" {
		return fail(pkgerrors.New("[Flow.Complete] token response carries no subject"))
	}
	request.Advance(authrequests.StateEstablished)
	return claims, nil
}

// exchangeError maps the IdP's token-endpoint rejection onto the handshake
// error kinds so callers can distinguish a replayed code from an outage.
func exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return errors.Wrapf(errors.ErrCodeExpiredOrConsumed, "exchange rejected (%s)", retrieveErr.ErrorCode)
		}
	}
	return errors.Wrapf(err, "code exchange")
}

func extraString(token *oauth2.Token, key string) string {
	value, _ := token.Extra(key).(string)
	return value
}

func extraStringMap(token *oauth2.Token, key string) map[string]string {
	raw, ok := token.Extra(key).(map[string]interface{})
	if !ok {
		return nil
	}
	attributes := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			attributes[k] = s
		}
	}
	return attributes
}
