package model

import "testing"

func TestSession_RoleChecks(t *testing.T) {
	tests := []struct {
		name        string
		session     *Session
		wantAdmin   bool
		wantAdopter bool
	}{
		{"セッションなし（nil）", nil, false, false},
		{"管理者", &Session{Profile: Profile{Role: RoleAdmin}}, true, false},
		{"里親", &Session{Profile: Profile{Role: RoleAdopter}}, false, true},
		{"ロール未設定", &Session{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.IsAdmin(); got != tt.wantAdmin {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.wantAdmin)
			}
			if got := tt.session.IsAdopter(); got != tt.wantAdopter {
				t.Errorf("IsAdopter() = %v, want %v", got, tt.wantAdopter)
			}
		})
	}
}
