package auth

import (
	"strings"

	"fieldseal/internal/domain/jobs"

	"github.com/gin-gonic/gin"
)

// HeaderAuthenticator trusts identity headers set by the edge proxy. Real
// session verification happens upstream; this service only needs the acting
// technician identity and grants.
type HeaderAuthenticator struct{}

func NewHeaderAuthenticator() *HeaderAuthenticator {
	return &HeaderAuthenticator{}
}

func (h *HeaderAuthenticator) Authenticate(c *gin.Context) (jobs.Principal, error) {
	principal := jobs.Principal{
		Subject: strings.TrimSpace(c.GetHeader("X-Technician-ID")),
		Contact: strings.TrimSpace(c.GetHeader("X-Technician-Contact")),
	}
	if scopes := strings.TrimSpace(c.GetHeader("X-Scopes")); scopes != "" {
		principal.Scopes = splitCSV(scopes)
	}
	if roles := strings.TrimSpace(c.GetHeader("X-Roles")); roles != "" {
		principal.Roles = splitCSV(roles)
	}
	return principal, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
