package auth

import (
	"errors"
	"testing"

	"fieldseal/internal/domain/jobs"
)

func TestRequire(t *testing.T) {
	authorizer := NewAuthorizer()
	tests := []struct {
		name       string
		principal  jobs.Principal
		permission string
		wantCode   string
		wantErr    bool
	}{
		{
			name:       "matching scope",
			principal:  jobs.Principal{Subject: "tech-1", Scopes: []string{"job:read", "job:submit"}},
			permission: jobs.PermJobSubmit,
		},
		{
			name:       "missing scope",
			principal:  jobs.Principal{Subject: "tech-1", Scopes: []string{"job:read"}},
			permission: jobs.PermJobSubmit,
			wantCode:   "MISSING_SCOPE",
			wantErr:    true,
		},
		{
			name:       "admin role bypasses scopes",
			principal:  jobs.Principal{Subject: "ops-1", Roles: []string{DefaultAdminRole}},
			permission: jobs.PermJobWrite,
		},
		{
			name:       "admin scope bypasses scopes",
			principal:  jobs.Principal{Subject: "ops-1", Scopes: []string{DefaultAdminScope}},
			permission: jobs.PermJobWrite,
		},
		{
			name:       "admin permission without role",
			principal:  jobs.Principal{Subject: "tech-1", Scopes: []string{"admin:seal"}},
			permission: "admin:seal",
			wantCode:   "MISSING_ROLE",
			wantErr:    true,
		},
		{
			name:       "empty subject",
			principal:  jobs.Principal{Scopes: []string{"job:read"}},
			permission: jobs.PermJobRead,
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorizer.Require(tt.principal, tt.permission)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Require = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Require = nil, want error")
			}
			if !errors.Is(err, jobs.ErrNotAuthorized) {
				t.Fatalf("error does not unwrap to ErrNotAuthorized: %v", err)
			}
			if tt.wantCode != "" {
				authz, ok := IsAuthzError(err)
				if !ok || authz.Code != tt.wantCode {
					t.Fatalf("code = %v, want %q", err, tt.wantCode)
				}
			}
		})
	}
}
