package access

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"ec-dashboard/internal/domain"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/rs/zerolog"
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = r.sub == p.sub && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Rule is one policy line: subject may (or may not) perform action on object.
type Rule struct {
	Subject string
	Object  string
	Action  string
	Deny    bool
}

// DefaultRules lets hosts reach everything and keeps customers out of the
// host-only API.
var DefaultRules = []Rule{
	{Subject: "host", Object: "/*", Action: "*"},
	{Subject: "customer", Object: "/*", Action: "*"},
	{Subject: "customer", Object: "/api/host", Action: "*", Deny: true},
	{Subject: "customer", Object: "/api/host/*", Action: "*", Deny: true},
}

type Policy struct {
	enforcer *casbin.Enforcer
	logger   zerolog.Logger
}

func NewPolicy(rules []Rule, logger zerolog.Logger) (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse access model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	for _, rule := range rules {
		eft := "allow"
		if rule.Deny {
			eft = "deny"
		}
		if _, err := e.AddPolicy(rule.Subject, rule.Object, rule.Action, eft); err != nil {
			return nil, fmt.Errorf("failed to add rule for %s: %w", rule.Subject, err)
		}
	}

	return &Policy{
		enforcer: e,
		logger:   logger.With().Str("component", "access").Logger(),
	}, nil
}

// Check returns domain.ErrAccessDenied when mode may not call method on
// target. Targets that are not already in canonical form are denied outright,
// since the HTTP client rewrites them before they reach the backend.
func (p *Policy) Check(mode domain.ModeKind, method, target string) error {
	sub := mode.Tenant()
	obj, ok := canonicalPath(target)
	if !ok {
		p.logger.Debug().Str("subject", sub).Str("path", target).Msg("access denied: non-canonical path")
		return domain.ErrAccessDenied
	}

	allowed, err := p.enforcer.Enforce(sub, obj, method)
	if err != nil {
		p.logger.Error().Err(err).Str("subject", sub).Str("path", obj).Msg("policy evaluation failed")
		return domain.ErrAccessDenied
	}
	if !allowed {
		p.logger.Debug().Str("subject", sub).Str("method", method).Str("path", obj).Msg("access denied")
		return domain.ErrAccessDenied
	}
	return nil
}

// canonicalPath decodes the path part of target and reports whether it is
// absolute and free of dot segments, repeated or trailing slashes.
func canonicalPath(target string) (string, bool) {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	decoded, err := url.PathUnescape(target)
	if err != nil || !strings.HasPrefix(decoded, "/") {
		return "", false
	}
	if path.Clean(decoded) != decoded {
		return "", false
	}
	return decoded, true
}
