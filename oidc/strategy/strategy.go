package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/oidcware/relay/oidc"
)

// Client is the protocol capability the strategy delegates to. It is
// satisfied by *oidc.Provider; tests use a double.
type Client interface {
	// Issuer returns the provider's stable issuer identity, used to
	// namespace the strategy's session key.
	Issuer() string

	// AuthURL builds the authorization URL from the given request
	// parameters, without any network I/O.
	AuthURL(params url.Values) (string, error)

	// Exchange validates the authorization response params against the
	// checks and exchanges the authorization code for a TokenSet.
	Exchange(ctx context.Context, params url.Values, checks oidc.Checks) (*oidc.TokenSet, error)

	// UserInfo fetches the userinfo claims with the given access token.
	UserInfo(ctx context.Context, accessToken oidc.AccessToken) (map[string]interface{}, error)
}

var _ Client = (*oidc.Provider)(nil)

// sessionKeyPrefix namespaces flow state by issuer, so multiple
// concurrently configured issuers never collide in one session.
const sessionKeyPrefix = "oidc:"

// DefaultInteractionErrors are the authorization error codes classified as a
// normal "authentication did not succeed" outcome (Fail) rather than a
// system fault (Error): the provider is saying the user must interact, not
// that anything is broken.
func DefaultInteractionErrors() []string {
	return []string{
		"login_required",
		"interaction_required",
		"consent_required",
		"account_selection_required",
	}
}

// Config is the configuration for a Strategy. It is immutable after New.
type Config struct {
	// Client is the protocol client. Required.
	Client Client

	// Verify is the application's verification step. Required.
	Verify VerifyFunc

	// VerifyMode selects the shape Verify is invoked with.
	VerifyMode VerifyMode

	// Params are default authorization request parameters (redirect_uri,
	// scope, response_type, response_mode, max_age, extensions...). Per
	// request options override individual entries; absent options never
	// clobber a default.
	Params url.Values

	// PKCE enables proof-key code exchange with the given challenge method.
	// Empty disables PKCE; oidc.S256 is the only supported method.
	PKCE oidc.ChallengeMethod

	// SessionKey overrides the session key the flow state is stored under.
	// The default is "oidc:" plus the issuer's hostname.
	SessionKey string

	// InteractionErrors overrides the error codes classified as Fail rather
	// than Error. Nil means DefaultInteractionErrors; every code not listed
	// is classified as Error.
	InteractionErrors []string

	// ClientAssertion, when set, is called at exchange time to produce a
	// fresh client_assertion JWT for token endpoint authentication.
	ClientAssertion func(ctx context.Context) (string, error)

	// Logger is an optional logger
	Logger hclog.Logger
}

// Validate the strategy configuration, reporting every problem rather than
// just the first.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, oidc.ErrNilParameter)
	}
	var result *multierror.Error
	if c.Client == nil {
		result = multierror.Append(result, fmt.Errorf("client is nil: %w", oidc.ErrNilParameter))
	}
	if c.Verify == nil {
		result = multierror.Append(result, fmt.Errorf("verify func is nil: %w", oidc.ErrNilParameter))
	}
	if !c.VerifyMode.valid() {
		result = multierror.Append(result, fmt.Errorf("%s: %w", c.VerifyMode, oidc.ErrInvalidParameter))
	}
	if c.PKCE != "" && c.PKCE != oidc.S256 {
		result = multierror.Append(result, fmt.Errorf("PKCE method %q: %w", c.PKCE, oidc.ErrUnsupportedChallengeMethod))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Strategy is an OIDC relying-party authentication strategy. One Strategy
// serves many concurrent requests; all of its state is immutable after New,
// and per-flow state lives in the Session each request carries.
type Strategy struct {
	client          Client
	verify          VerifyFunc
	mode            VerifyMode
	params          url.Values
	pkce            oidc.ChallengeMethod
	sessionKey      string
	interactionErrs map[string]bool
	clientAssertion func(ctx context.Context) (string, error)
	logger          hclog.Logger
}

// New creates a Strategy from the config.
func New(c *Config) (*Strategy, error) {
	const op = "strategy.New"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid strategy config: %w", op, err)
	}

	s := &Strategy{
		client:          c.Client,
		verify:          c.Verify,
		mode:            c.VerifyMode,
		params:          url.Values{},
		pkce:            c.PKCE,
		sessionKey:      c.SessionKey,
		interactionErrs: map[string]bool{},
		clientAssertion: c.ClientAssertion,
		logger:          c.Logger,
	}
	for k, v := range c.Params {
		s.params[k] = append([]string(nil), v...)
	}
	if s.sessionKey == "" {
		s.sessionKey = sessionKeyPrefix + issuerHost(c.Client.Issuer())
	}
	codes := c.InteractionErrors
	if codes == nil {
		codes = DefaultInteractionErrors()
	}
	for _, code := range codes {
		s.interactionErrs[code] = true
	}
	return s, nil
}

// SessionKey returns the session key the strategy stores flow state under.
func (s *Strategy) SessionKey() string {
	return s.sessionKey
}

// issuerHost reduces an issuer identity to its hostname for session key
// namespacing. A non-URL issuer is used as-is.
func issuerHost(issuer string) string {
	if u, err := url.Parse(issuer); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return issuer
}

// Authenticate runs the state machine once for the given request and
// returns its single outcome. Requests carrying an authorization response
// parameter (code, error or a token) are treated as callbacks; everything
// else starts a new flow and yields a Redirect.
//
// The sess must be the session owned by this request; Authenticate is the
// only writer of its flow-state entry.
func (s *Strategy) Authenticate(ctx context.Context, req *http.Request, sess Session, opt ...Option) Outcome {
	const op = "Strategy.Authenticate"
	if sess == nil {
		return Error{Err: fmt.Errorf("%s: %w", op, ErrNoSession)}
	}
	params, err := responseParams(req)
	if err != nil {
		return Error{Err: fmt.Errorf("%s: unable to parse request parameters: %w", op, err)}
	}
	if isCallback(params) {
		outcome := s.callback(ctx, req, sess, params)
		s.logDebug("authorization callback finished", "outcome", fmt.Sprintf("%T", outcome))
		return outcome
	}
	return s.initiate(sess, opt...)
}

// responseParams reads the request's parameters: query for GET, form body
// for POST. The same values drive both classification and callback
// validation.
func responseParams(req *http.Request) (url.Values, error) {
	if req.Method == http.MethodPost {
		if err := req.ParseForm(); err != nil {
			return nil, err
		}
		return req.PostForm, nil
	}
	return req.URL.Query(), nil
}

// isCallback reports whether the parameter set looks like an authorization
// response rather than a request to start a flow.
func isCallback(params url.Values) bool {
	for _, k := range []string{"code", "error", "id_token", "access_token"} {
		if params.Get(k) != "" {
			return true
		}
	}
	return false
}

// initiate starts a new authorization flow: it generates the flow's
// anti-forgery material, persists it in the session, and produces a
// Redirect to the provider's authorization endpoint. No network I/O
// happens here.
func (s *Strategy) initiate(sess Session, opt ...Option) Outcome {
	const op = "Strategy.initiate"
	opts := getReqOpts(opt...)

	params := url.Values{}
	for k, v := range s.params {
		params[k] = append([]string(nil), v...)
	}
	setNonEmpty(params, "redirect_uri", opts.withRedirectURL)
	setNonEmpty(params, "response_type", opts.withResponseType)
	setNonEmpty(params, "response_mode", opts.withResponseMode)
	setNonEmpty(params, "display", opts.withDisplay)
	setNonEmpty(params, "scope", strings.Join(opts.withScopes, " "))
	setNonEmpty(params, "prompt", strings.Join(opts.withPrompts, " "))
	setNonEmpty(params, "acr_values", strings.Join(opts.withACRValues, " "))
	if len(opts.withUILocales) > 0 {
		locales := make([]string, 0, len(opts.withUILocales))
		for _, l := range opts.withUILocales {
			locales = append(locales, l.String())
		}
		params.Set("ui_locales", strings.Join(locales, " "))
	}
	if opts.withMaxAge > 0 {
		params.Set("max_age", strconv.FormatUint(uint64(opts.withMaxAge), 10))
	}
	for k, v := range opts.withExtraParams {
		params[k] = append([]string(nil), v...)
	}

	responseType := params.Get("response_type")
	if responseType == "" {
		responseType = "code"
		params.Set("response_type", responseType)
	}

	state := opts.withState
	if state == "" {
		state = params.Get("state")
	}
	if state == "" {
		var err error
		if state, err = oidc.NewID(oidc.WithPrefix("st")); err != nil {
			return Error{Err: fmt.Errorf("%s: unable to generate state: %w", op, err)}
		}
	}
	params.Set("state", state)

	flow := FlowState{
		State:        state,
		ResponseType: responseType,
	}

	// nonce is mandatory wherever an id_token can come back outside the
	// back-channel code exchange
	if nonceRequired(responseType, params.Get("response_mode")) {
		nonce := opts.withNonce
		if nonce == "" {
			nonce = params.Get("nonce")
		}
		if nonce == "" {
			var err error
			if nonce, err = oidc.NewID(oidc.WithPrefix("n")); err != nil {
				return Error{Err: fmt.Errorf("%s: unable to generate nonce: %w", op, err)}
			}
		}
		params.Set("nonce", nonce)
		flow.Nonce = nonce
	}

	if maxAge := params.Get("max_age"); maxAge != "" {
		seconds, err := strconv.ParseUint(maxAge, 10, 32)
		if err != nil {
			return Error{Err: fmt.Errorf("%s: invalid max_age %q: %w", op, maxAge, oidc.ErrInvalidParameter)}
		}
		flow.MaxAge = uint(seconds)
	}

	if s.pkce != "" {
		verifier, err := oidc.NewCodeVerifier()
		if err != nil {
			return Error{Err: fmt.Errorf("%s: unable to generate PKCE verifier: %w", op, err)}
		}
		flow.CodeVerifier = verifier.Verifier()
		params.Set("code_challenge", verifier.Challenge())
		params.Set("code_challenge_method", string(verifier.Method()))
	}

	data, err := json.Marshal(flow)
	if err != nil {
		return Error{Err: fmt.Errorf("%s: unable to encode flow state: %w", op, err)}
	}
	sess.Set(s.sessionKey, data)

	authURL, err := s.client.AuthURL(params)
	if err != nil {
		return Error{Err: fmt.Errorf("%s: unable to build authorization URL: %w", op, err)}
	}
	s.logDebug("starting authorization flow", "issuer", s.client.Issuer(), "response_type", responseType)
	return Redirect{URL: authURL}
}

// setNonEmpty sets key to value unless value is empty, so absent overrides
// never clobber a configured default.
func setNonEmpty(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

// nonceRequired reports whether the flow must carry a nonce: any response
// type other than bare "code", or a form_post response mode, can deliver an
// id_token outside the code exchange.
func nonceRequired(responseType, responseMode string) bool {
	if responseMode == "form_post" {
		return true
	}
	types := strings.Fields(responseType)
	return len(types) != 1 || types[0] != "code"
}

// callback validates and dispatches an authorization response. The flow
// state entry is consumed before anything can fail, so a replayed callback
// against the same session finds nothing to validate against.
func (s *Strategy) callback(ctx context.Context, req *http.Request, sess Session, params url.Values) Outcome {
	const op = "Strategy.callback"

	var flow FlowState
	if data, ok := sess.Get(s.sessionKey); ok {
		sess.Delete(s.sessionKey)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &flow); err != nil {
				return Error{Err: fmt.Errorf("%s: %w: %v", op, ErrInvalidFlowState, err)}
			}
		}
	}

	if code := params.Get("error"); code != "" {
		if s.interactionErrs[code] {
			return Fail{Message: code}
		}
		return Error{Err: &AuthError{
			Code:        code,
			Description: params.Get("error_description"),
			URI:         params.Get("error_uri"),
		}}
	}

	checks := oidc.Checks{
		State:         flow.State,
		Nonce:         flow.Nonce,
		Verifier:      flow.CodeVerifier,
		MaxAgeSeconds: flow.MaxAge,
		ResponseType:  flow.ResponseType,
	}
	if s.clientAssertion != nil {
		assertion, err := s.clientAssertion(ctx)
		if err != nil {
			return Error{Err: fmt.Errorf("%s: unable to create client assertion: %w", op, err)}
		}
		checks.ClientAssertionJWT = assertion
	}

	tokens, err := s.client.Exchange(ctx, params, checks)
	if err != nil {
		// a failed exchange is always a fault, never a Fail
		return Error{Err: fmt.Errorf("%s: %w", op, err)}
	}

	var profile map[string]interface{}
	if s.mode.wantsProfile() && tokens.AccessToken() != "" {
		if profile, err = s.client.UserInfo(ctx, tokens.AccessToken()); err != nil {
			return Error{Err: fmt.Errorf("%s: %w", op, err)}
		}
	}

	vc := &VerifyContext{
		Tokens:  tokens,
		Profile: profile,
	}
	if s.mode.wantsRequest() {
		vc.Request = req
	}
	result, err := s.runVerify(ctx, vc)
	switch {
	case err != nil:
		return Error{Err: fmt.Errorf("%s: verification failed: %w", op, err)}
	case result == nil || result.User == nil:
		return Fail{}
	default:
		return Success{User: result.User, Info: result.Info}
	}
}

// runVerify invokes the verify func, converting a panic into an error so it
// surfaces as an Error outcome instead of escaping Authenticate.
func (s *Strategy) runVerify(ctx context.Context, vc *VerifyContext) (result *VerifyResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("verify func panic: %v", r)
		}
	}()
	return s.verify(ctx, vc)
}

func (s *Strategy) logDebug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
