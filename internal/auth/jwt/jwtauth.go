package jwt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/lestrrat-go/jwx/jwt"
)

const (
	claimRole       = "role"
	claimCompanyIds = "company_ids"
)

// VerifyToken checks signature and expiry of the token and returns its principal.
func VerifyToken(jwtAuth *jwtauth.JWTAuth, token string) (entity.Principal, error) {
	t, err := jwtauth.VerifyToken(jwtAuth, token)
	if err != nil {
		return entity.Principal{}, err
	}
	return PrincipalFromToken(t)
}

// NewToken creates a JWT carrying the principal as sub, role and company_ids claims.
func NewToken(jwtAuth *jwtauth.JWTAuth, ttl time.Duration, p entity.Principal) (string, error) {
	companyIds := p.CompanyIds
	if companyIds == nil {
		companyIds = []int{}
	}
	claims := map[string]interface{}{
		"exp":           time.Now().Add(ttl).Unix(),
		"sub":           p.Email,
		claimRole:       string(p.Role),
		claimCompanyIds: companyIds,
	}
	_, ts, err := jwtAuth.Encode(claims)
	if err != nil {
		return ts, err
	}
	return ts, nil
}

// PrincipalFromToken reads the principal claims of a verified token.
func PrincipalFromToken(t jwt.Token) (entity.Principal, error) {
	if t == nil {
		return entity.Principal{}, fmt.Errorf("no token")
	}
	p := entity.Principal{Email: t.Subject()}

	role, _ := t.Get(claimRole)
	r, _ := role.(string)
	switch entity.UserRole(r) {
	case entity.RoleInternal, entity.RoleExternal:
		p.Role = entity.UserRole(r)
	default:
		return entity.Principal{}, fmt.Errorf("unknown role %q", r)
	}

	raw, _ := t.Get(claimCompanyIds)
	ids, err := intSlice(raw)
	if err != nil {
		return entity.Principal{}, fmt.Errorf("bad %s claim: %w", claimCompanyIds, err)
	}
	p.CompanyIds = ids
	return p, nil
}

// intSlice converts a decoded JSON array into ints.
func intSlice(v any) ([]int, error) {
	switch vs := v.(type) {
	case nil:
		return []int{}, nil
	case []int:
		return vs, nil
	case []any:
		ids := make([]int, 0, len(vs))
		for _, item := range vs {
			switch n := item.(type) {
			case float64:
				ids = append(ids, int(n))
			case json.Number:
				i, err := n.Int64()
				if err != nil {
					return nil, err
				}
				ids = append(ids, int(i))
			case int:
				ids = append(ids, n)
			default:
				return nil, fmt.Errorf("unexpected element %T", item)
			}
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
}
