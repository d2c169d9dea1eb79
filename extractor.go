package authgate

import (
	"errors"
	"net/http"
	"strings"
)

// TokenExtractor pulls a raw token out of a request. An error is returned
// only when a token was supplied but malformed; a simply absent token is
// an empty string with no error, so the middleware can apply its
// credentials-optional policy.
type TokenExtractor func(r *http.Request) (string, error)

// AuthHeaderTokenExtractor reads the Authorization: Bearer header.
func AuthHeaderTokenExtractor(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil // No error, just no token.
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("Authorization header format must be Bearer {token}")
	}
	return parts[1], nil
}

// ParameterTokenExtractor reads the token from a query-string parameter.
func ParameterTokenExtractor(param string) TokenExtractor {
	return func(r *http.Request) (string, error) {
		return r.URL.Query().Get(param), nil
	}
}

// MultiTokenExtractor tries each extractor in order and takes the first
// non-empty token. An extractor error is returned immediately.
func MultiTokenExtractor(extractors ...TokenExtractor) TokenExtractor {
	return func(r *http.Request) (string, error) {
		for _, ex := range extractors {
			token, err := ex(r)
			if err != nil {
				return "", err
			}
			if token != "" {
				return token, nil
			}
		}
		return "", nil
	}
}
