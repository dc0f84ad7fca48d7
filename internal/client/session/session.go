// Package session derives the current user's identity from the claims of a
// bearer token. The result only drives presentation; the server remains the
// sole authority.
package session

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"feedtrack/internal/model"
)

type Identity struct {
	ID       int64
	Role     model.Role
	Username string
}

// CanManage reports whether project administration controls should be shown.
func (i *Identity) CanManage() bool {
	return i != nil && i.Role.CanManage()
}

type claims struct {
	Sub      json.RawMessage `json:"sub"`
	ID       json.RawMessage `json:"id"`
	Username string          `json:"username"`
	Role     string          `json:"role"`
}

var parser = jwt.NewParser()

// Resolve decodes the claims segment of token without verifying its
// signature. It returns nil for anything it cannot make sense of.
func Resolve(token string) *Identity {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil
	}
	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil
	}

	var c claims
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&c); err != nil {
		return nil
	}

	id, ok := parseID(c.Sub)
	if !ok {
		id, ok = parseID(c.ID)
	}
	if !ok {
		return nil
	}
	role, ok := model.ParseRole(c.Role)
	if !ok {
		return nil
	}
	return &Identity{ID: id, Role: role, Username: c.Username}
}

// parseID accepts a positive integer encoded either as a JSON number or as a
// JSON string.
func parseID(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
