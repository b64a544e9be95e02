package adminapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
)

// persistedCredential is the on-disk shape of a bootstrapped admin
// password, grounded on pkg/platform/auth/store_file.go's JSON
// load/save technique — adapted from that file's multi-user UserStore
// down to the single credential this one-node admin surface needs.
type persistedCredential struct {
	Password string `json:"password"`
}

// LoadOrCreateAdminPassword reads the admin password from path, or
// generates a random one and persists it there if the file does not
// exist yet. cmd/redisnode calls this when --admin-password is left
// empty, so standing the admin surface up doesn't require an operator
// to pick a password up front — they read the generated one back out of
// path instead.
func LoadOrCreateAdminPassword(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var cred persistedCredential
		if err := json.Unmarshal(data, &cred); err != nil {
			return "", err
		}
		if cred.Password != "" {
			return cred.Password, nil
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	password, err := randomPassword()
	if err != nil {
		return "", err
	}
	data, err = json.MarshalIndent(persistedCredential{Password: password}, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return password, nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
