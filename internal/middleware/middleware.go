// Package middleware holds the http.Handler wrappers applied to every route.
package middleware

import "net/http"

type Middleware func(http.Handler) http.Handler

// Chain wraps handler so that the first middleware is the outermost.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	h := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
