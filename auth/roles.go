package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Role is a permission tier granted through a groups claim.
type Role string

const (
	RoleFreemium Role = "freemium"
	RolePremium  Role = "premium"
	RoleAdmin    Role = "admin"
)

// DefaultGroupsClaim is the claim read for role groups when none is configured.
const DefaultGroupsClaim = "cognito:groups"

// roleImplications lists, for every directly granted role, the roles it
// confers.
var roleImplications = map[Role][]Role{
	RoleFreemium: {RoleFreemium},
	RolePremium:  {RolePremium, RoleFreemium},
	RoleAdmin:    {RoleAdmin, RolePremium, RoleFreemium},
}

// ParseRole returns the Role named by s, or false if s is not a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := roleImplications[r]
	return r, ok
}

// RoleSet is an unordered set of roles.
type RoleSet map[Role]struct{}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Sorted returns the roles in lexical order.
func (s RoleSet) Sorted() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// Strings returns the sorted role names.
func (s RoleSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, r := range sorted {
		out[i] = string(r)
	}
	return out
}

// ExpandRoles returns the effective role set implied by the directly granted
// roles.
func ExpandRoles(direct ...Role) RoleSet {
	out := make(RoleSet)
	for _, r := range direct {
		for _, implied := range roleImplications[r] {
			out[implied] = struct{}{}
		}
	}
	return out
}

// Claims is the identity derived from a session's tokens. Empty Subject or
// Email means the claim was not present.
type Claims struct {
	Subject string
	Email   string
	Roles   RoleSet
}

// HasRole reports whether claims grants role. Nil claims grant nothing.
func HasRole(claims *Claims, role Role) bool {
	if claims == nil {
		return false
	}
	return claims.Roles.Has(role)
}

// Resolver derives Claims from a Session.
type Resolver struct {
	groupsClaim string
}

// NewResolver returns a Resolver reading roles from groupsClaim.
// An empty name selects DefaultGroupsClaim.
func NewResolver(groupsClaim string) *Resolver {
	if groupsClaim == "" {
		groupsClaim = DefaultGroupsClaim
	}
	return &Resolver{groupsClaim: groupsClaim}
}

// Resolve decodes both tokens of session. Subject and email prefer the
// access token and fall back to the ID token. Roles are the union of the
// groups found in either token, expanded through the implication table.
func (r *Resolver) Resolve(session Session) Claims {
	access, _ := DecodeClaims(session.AccessToken)
	id, _ := DecodeClaims(session.IDToken)

	direct := append(r.directRoles(access), r.directRoles(id)...)
	return Claims{
		Subject: firstNonEmpty(stringClaim(access, "sub"), stringClaim(id, "sub")),
		Email:   firstNonEmpty(stringClaim(access, "email"), stringClaim(id, "email")),
		Roles:   ExpandRoles(direct...),
	}
}

func (r *Resolver) directRoles(claims jwt.MapClaims) []Role {
	if claims == nil {
		return nil
	}
	groups, ok := claims[r.groupsClaim].([]any)
	if !ok {
		return nil
	}
	var roles []Role
	for _, g := range groups {
		s, ok := g.(string)
		if !ok {
			continue
		}
		if role, ok := ParseRole(s); ok {
			roles = append(roles, role)
		}
	}
	return roles
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
