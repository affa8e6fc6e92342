package policy

import (
	"net/http"
	"strings"
)

type Access int

const (
	Protected Access = iota
	Public
)

func (a Access) String() string {
	if a == Public {
		return "public"
	}
	return "protected"
}

// Rule matches a method and a path pattern. An empty Method matches any
// method. A pattern ending in "/**" matches the prefix and everything below it.
type Rule struct {
	Method  string
	Pattern string
	Access  Access
}

func (r Rule) matches(method, path string) bool {
	if r.Method != "" && r.Method != method {
		return false
	}
	if prefix, ok := strings.CutSuffix(r.Pattern, "/**"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == r.Pattern
}

// Policy classifies requests by the first matching rule. Unmatched requests
// are protected.
type Policy struct {
	rules []Rule
}

func New(rules ...Rule) *Policy {
	return &Policy{rules: rules}
}

// Default is the route table served by the API.
func Default() *Policy {
	return New(
		Rule{Pattern: "/health", Access: Public},
		Rule{Pattern: "/docs/**", Access: Public},

		Rule{Method: http.MethodPost, Pattern: "/api/v1/auth/change-email", Access: Protected},
		Rule{Method: http.MethodGet, Pattern: "/api/v1/auth/sessions", Access: Protected},
		Rule{Method: http.MethodGet, Pattern: "/api/v1/users/me", Access: Protected},

		Rule{Method: http.MethodPost, Pattern: "/api/v1/auth/**", Access: Public},
		Rule{Method: http.MethodDelete, Pattern: "/api/v1/auth/**", Access: Public},
		Rule{Method: http.MethodGet, Pattern: "/api/v1/auth/refresh", Access: Public},
		Rule{Method: http.MethodGet, Pattern: "/api/v1/auth/github/authorize", Access: Public},
		Rule{Method: http.MethodPost, Pattern: "/api/v1/users/register", Access: Public},
		Rule{Method: http.MethodPatch, Pattern: "/api/v1/users/activate", Access: Public},
		Rule{Method: http.MethodPatch, Pattern: "/api/v1/users/password", Access: Public},
		Rule{Method: http.MethodPatch, Pattern: "/api/v1/users/email", Access: Public},
		Rule{Method: http.MethodPost, Pattern: "/api/v1/payment/stripe/sponsorship/webhook", Access: Public},
	)
}

func (p *Policy) Classify(method, path string) Access {
	method = strings.ToUpper(method)
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for _, r := range p.rules {
		if r.matches(method, path) {
			return r.Access
		}
	}
	return Protected
}

func (p *Policy) IsPublic(method, path string) bool {
	return p.Classify(method, path) == Public
}
