package middleware

import "net/http"

// Stack is an ordered list of middleware. The first entry sees the request first.
type Stack []func(http.Handler) http.Handler

// Then wraps h with every middleware in the stack.
func (s Stack) Then(h http.Handler) http.Handler {
	for i := range s {
		h = s[len(s)-1-i](h)
	}
	return h
}
