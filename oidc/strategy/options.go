package strategy

import (
	"net/url"

	"golang.org/x/text/language"
)

// Option defines a common functional options type
type Option func(interface{})

// applyOpts takes a pointer to the options struct as a set of default
// options and applies the slice of opts as overrides.
func applyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		o(opts)
	}
}

// reqOptions is the set of available options for one authorization request.
// They override the strategy's default Params; defaults survive any option
// that isn't supplied.
type reqOptions struct {
	withRedirectURL  string
	withScopes       []string
	withResponseType string
	withResponseMode string
	withState        string
	withNonce        string
	withMaxAge       uint
	withPrompts      []string
	withACRValues    []string
	withUILocales    []language.Tag
	withDisplay      string
	withExtraParams  url.Values
}

// reqDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func reqDefaults() reqOptions {
	return reqOptions{}
}

// getReqOpts gets the request defaults and applies the opt overrides passed
// in
func getReqOpts(opt ...Option) reqOptions {
	opts := reqDefaults()
	applyOpts(&opts, opt...)
	return opts
}

// WithRedirectURL overrides the redirect_uri for one authorization request.
func WithRedirectURL(url string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withRedirectURL = url
		}
	}
}

// WithScopes overrides the scope for one authorization request.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithResponseType overrides the response_type for one authorization
// request, e.g. "code id_token".
func WithResponseType(responseType string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withResponseType = responseType
		}
	}
}

// WithResponseMode sets the response_mode for one authorization request,
// e.g. "form_post".
func WithResponseMode(responseMode string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withResponseMode = responseMode
		}
	}
}

// WithState supplies a static state token instead of generating one. Most
// callers should let the strategy generate state; this is for protocols
// bridged through a pre-agreed state value.
func WithState(state string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withState = state
		}
	}
}

// WithNonce supplies a static nonce instead of generating one when a nonce
// is required.
func WithNonce(nonce string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withNonce = nonce
		}
	}
}

// WithMaxAge requests that the user must have authenticated within the
// given number of seconds. The value is stored in the flow state, and the
// id_token's auth_time is checked against it at exchange.
func WithMaxAge(seconds uint) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withMaxAge = seconds
		}
	}
}

// WithPrompts sets the prompt parameter, e.g. "login", "select_account".
func WithPrompts(prompts ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withPrompts = prompts
		}
	}
}

// WithACRValues sets the acr_values parameter.
func WithACRValues(values ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withACRValues = values
		}
	}
}

// WithUILocales sets the ui_locales parameter from BCP47 language tags.
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withUILocales = locales
		}
	}
}

// WithDisplay sets the display parameter, e.g. "page", "popup", "wap".
func WithDisplay(display string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withDisplay = display
		}
	}
}

// WithExtraParams merges ad hoc extension parameters into the authorization
// request. Extra params win over the strategy's defaults.
func WithExtraParams(params url.Values) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withExtraParams = params
		}
	}
}
