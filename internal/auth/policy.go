package auth

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/taskhub/task-auth-service/internal/domain"
	apperrors "github.com/taskhub/task-auth-service/pkg/util"
)

var (
	// ErrAmbiguousRule is returned when two rules cover the same pattern.
	ErrAmbiguousRule = errors.New("auth: ambiguous policy rule")
	// ErrInvalidPattern is returned for patterns the matcher cannot express.
	ErrInvalidPattern = errors.New("auth: invalid route pattern")
)

// AccessKind classifies what a rule demands of the caller.
type AccessKind int

const (
	AccessAuthenticated AccessKind = iota
	AccessPublic
	AccessRole
)

// Access is the requirement attached to a route pattern.
type Access struct {
	Kind AccessKind
	Role string
}

// Public lets anyone through, token or not.
func Public() Access { return Access{Kind: AccessPublic} }

// Authenticated requires any valid identity.
func Authenticated() Access { return Access{Kind: AccessAuthenticated} }

// RequireRole requires an identity holding role.
func RequireRole(role string) Access { return Access{Kind: AccessRole, Role: role} }

func (a Access) String() string {
	switch a.Kind {
	case AccessPublic:
		return "public"
	case AccessRole:
		return "role:" + a.Role
	default:
		return "authenticated"
	}
}

// Rule binds a route pattern to an access requirement. A pattern is either an
// exact path or a prefix ending in "/**", which also matches the bare prefix.
type Rule struct {
	Pattern string
	Access  Access
}

// DenyReason says why a request was refused.
type DenyReason int

const (
	ReasonNone DenyReason = iota
	ReasonUnauthenticated
	ReasonForbidden
)

func (r DenyReason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonForbidden:
		return "forbidden"
	default:
		return "none"
	}
}

// Decision is the outcome of evaluating a request against the policy.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	Pattern string
}

type compiledRule struct {
	Rule
	prefix string
	exact  bool
}

func (r compiledRule) matches(p string) bool {
	if r.exact {
		return p == r.prefix
	}
	if r.prefix == "" {
		return true
	}
	return p == r.prefix || strings.HasPrefix(p, r.prefix+"/")
}

// Policy maps routes to access requirements. It is immutable once built.
type Policy struct {
	rules []compiledRule
}

// NewPolicy compiles rules most-specific-first: exact paths before prefixes,
// longer prefixes before shorter ones.
func NewPolicy(rules ...Rule) (*Policy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		cr, err := compileRule(rule)
		if err != nil {
			return nil, err
		}
		if rule.Access.Kind == AccessRole && strings.TrimSpace(rule.Access.Role) == "" {
			return nil, fmt.Errorf("%w: %q has a role rule without a role", ErrInvalidPattern, rule.Pattern)
		}
		if _, dup := seen[cr.Pattern]; dup {
			return nil, fmt.Errorf("%w: %q", ErrAmbiguousRule, cr.Pattern)
		}
		seen[cr.Pattern] = struct{}{}
		compiled = append(compiled, cr)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		a, b := compiled[i], compiled[j]
		if a.exact != b.exact {
			return a.exact
		}
		return len(a.prefix) > len(b.prefix)
	})
	return &Policy{rules: compiled}, nil
}

func compileRule(rule Rule) (compiledRule, error) {
	raw := strings.ToLower(strings.TrimSpace(rule.Pattern))
	if raw == "" {
		return compiledRule{}, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}

	exact := true
	base := raw
	if strings.HasSuffix(raw, "/**") {
		exact = false
		base = strings.TrimSuffix(raw, "/**")
	}
	if strings.Contains(base, "*") {
		return compiledRule{}, fmt.Errorf("%w: %q", ErrInvalidPattern, rule.Pattern)
	}
	if exact {
		base = normalizePath(base)
	} else if base != "" {
		base = normalizePath(base)
		if base == "/" {
			base = ""
		}
	}

	pattern := base
	if !exact {
		pattern = base + "/**"
	}
	rule.Pattern = pattern
	return compiledRule{Rule: rule, prefix: base, exact: exact}, nil
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(strings.ToLower(p))
}

// Rules returns the effective rule table in evaluation order.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	for i, r := range p.rules {
		out[i] = r.Rule
	}
	return out
}

// Decide evaluates route for the given identity, which is nil for anonymous
// requests. Routes without a matching rule need any authenticated identity.
func (p *Policy) Decide(route string, id *domain.Identity) Decision {
	route = normalizePath(route)
	access, pattern := Authenticated(), ""
	for _, rule := range p.rules {
		if rule.matches(route) {
			access, pattern = rule.Access, rule.Pattern
			break
		}
	}

	switch {
	case access.Kind == AccessPublic:
		return Decision{Allowed: true, Pattern: pattern}
	case id == nil:
		return Decision{Reason: ReasonUnauthenticated, Pattern: pattern}
	case access.Kind == AccessRole && !id.HasRole(access.Role):
		return Decision{Reason: ReasonForbidden, Pattern: pattern}
	default:
		return Decision{Allowed: true, Pattern: pattern}
	}
}

// Enforce returns a handler that rejects requests the policy denies. It must
// run after AuthMiddleware.Handle.
func (p *Policy) Enforce(observers ...func(Decision)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, _ := PrincipalFromContext(c)
		decision := p.Decide(c.Path(), id)
		for _, observe := range observers {
			observe(decision)
		}
		switch decision.Reason {
		case ReasonUnauthenticated:
			c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="api"`)
			return apperrors.NewUnauthenticated("authentication required")
		case ReasonForbidden:
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
