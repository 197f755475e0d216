package strategy

import (
	"context"
	"net/http"
)

// SuccessFn handles a Success outcome (the authenticated user).
type SuccessFn func(w http.ResponseWriter, req *http.Request, user interface{}, info map[string]interface{})

// FailFn handles a Fail outcome (authentication did not succeed).
type FailFn func(w http.ResponseWriter, req *http.Request, message string, statusCode int)

// ErrorFn handles an Error outcome (a fault in the flow).
type ErrorFn func(w http.ResponseWriter, req *http.Request, err error)

// Handler adapts a Strategy into an http.HandlerFunc. The sessionFn
// resolves the request's session; the remaining callbacks render the
// terminal outcomes. Redirect outcomes are written directly.
func Handler(ctx context.Context, s *Strategy, sessionFn SessionFunc, successFn SuccessFn, failFn FailFn, errorFn ErrorFn) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var sess Session
		if sessionFn != nil {
			sess = sessionFn(req)
		}
		switch o := s.Authenticate(ctx, req, sess).(type) {
		case Redirect:
			status := o.Status
			if status == 0 {
				status = http.StatusFound
			}
			http.Redirect(w, req, o.URL, status)
		case Success:
			successFn(w, req, o.User, o.Info)
		case Fail:
			status := o.Status
			if status == 0 {
				status = http.StatusUnauthorized
			}
			failFn(w, req, o.Message, status)
		case Error:
			errorFn(w, req, o.Err)
		}
	}
}
