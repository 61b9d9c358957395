// auth.go - Provider credential management

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ProviderAuth 单个代码托管平台的凭证配置
type ProviderAuth struct {
	Token   string   `json:"token"`
	BaseURL string   `json:"base_url"`
	Hosts   []string `json:"hosts,omitempty"` // Extra self-hosted hostnames
}

// Configured 是否已配置凭证
func (p ProviderAuth) Configured() bool {
	return p.Token != ""
}

type AuthInfo struct {
	UserName  string       `json:"user_name"`
	UserEmail string       `json:"user_email"`
	GitLab    ProviderAuth `json:"gitlab"`
	GitHub    ProviderAuth `json:"github"`
}

// Global auth configuration
var authInfo AuthInfo

// GetAuthInfo gets the current auth configuration
func GetAuthInfo() AuthInfo {
	return authInfo
}

// SetAuthInfo sets the auth configuration
func SetAuthInfo(info AuthInfo) {
	authInfo = info
}

// LoadAuthConfig loads auth configuration from an auth.json file.
// A missing file only means no provider credentials are configured,
// which is a legitimate state, not a startup failure.
func LoadAuthConfig(authFilePath string) error {
	if _, err := os.Stat(authFilePath); os.IsNotExist(err) {
		authInfo = AuthInfo{}
		return nil
	}

	data, err := os.ReadFile(authFilePath)
	if err != nil {
		return fmt.Errorf("failed to read auth.json file: %w", err)
	}

	var authConfig AuthInfo
	if err := json.Unmarshal(data, &authConfig); err != nil {
		return fmt.Errorf("failed to parse auth.json: %w", err)
	}

	authInfo = authConfig
	return nil
}
