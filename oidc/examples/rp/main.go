// rp is a minimal relying party: it starts a local web server with a
// /login endpoint that kicks off the authorization flow and serves the
// provider's callback on the same route.
//
// Required environment variables:
//
//	OIDC_ISSUER:        the provider's issuer URL
//	OIDC_CLIENT_ID:     the relying party's client id
//	OIDC_CLIENT_SECRET: the relying party's client secret
//	OIDC_PORT:          optional port to listen on (default 3000)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/oidcware/relay/oidc"
	"github.com/oidcware/relay/oidc/strategy"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "rp",
		Level: hclog.Debug,
	})

	issuer := os.Getenv("OIDC_ISSUER")
	clientID := os.Getenv("OIDC_CLIENT_ID")
	clientSecret := os.Getenv("OIDC_CLIENT_SECRET")
	if issuer == "" || clientID == "" || clientSecret == "" {
		logger.Error("OIDC_ISSUER, OIDC_CLIENT_ID and OIDC_CLIENT_SECRET must be set")
		return 1
	}
	port := os.Getenv("OIDC_PORT")
	if port == "" {
		port = "3000"
	}
	redirectURL := fmt.Sprintf("http://localhost:%s/login", port)

	pc, err := oidc.NewConfig(
		issuer,
		clientID,
		oidc.ClientSecret(clientSecret),
		[]oidc.Alg{oidc.RS256, oidc.ES256},
		redirectURL,
		oidc.WithLogger(logger),
	)
	if err != nil {
		logger.Error("invalid provider config", "error", err)
		return 1
	}
	provider, err := oidc.NewProvider(pc)
	if err != nil {
		logger.Error("unable to reach provider", "error", err)
		return 1
	}
	defer provider.Done()

	s, err := strategy.New(&strategy.Config{
		Client:     provider,
		VerifyMode: strategy.VerifyTokensProfile,
		PKCE:       oidc.S256,
		Logger:     logger,
		Verify: func(ctx context.Context, vc *strategy.VerifyContext) (*strategy.VerifyResult, error) {
			var claims map[string]interface{}
			if err := vc.Tokens.IDToken().Claims(&claims); err != nil {
				return nil, err
			}
			user := map[string]interface{}{
				"sub":     claims["sub"],
				"profile": vc.Profile,
			}
			return &strategy.VerifyResult{User: user}, nil
		},
	})
	if err != nil {
		logger.Error("unable to create strategy", "error", err)
		return 1
	}

	// every browser gets its own in-memory session, keyed by a cookie
	sessions := newSessionStore()

	http.Handle("/login", strategy.Handler(context.Background(), s,
		sessions.sessionFor,
		func(w http.ResponseWriter, req *http.Request, user interface{}, info map[string]interface{}) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(user)
		},
		func(w http.ResponseWriter, req *http.Request, message string, statusCode int) {
			http.Error(w, "authentication failed: "+message, statusCode)
		},
		func(w http.ResponseWriter, req *http.Request, err error) {
			logger.Error("authentication error", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		},
	))
	http.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if _, err := req.Cookie(sessionCookie); err != nil {
			id, err := newSessionID()
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
			})
		}
		fmt.Fprintln(w, `<html><body><a href="/login">Sign in</a></body></html>`)
	})

	logger.Info("listening", "addr", "localhost:"+port, "redirect_url", redirectURL)
	if err := http.ListenAndServe("localhost:"+port, nil); err != nil {
		logger.Error("server stopped", "error", err)
		return 1
	}
	return 0
}
