package identity

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrInvalidToken       = errors.New("identity token rejected")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Identity 身份提供方校验后的调用者
type Identity struct {
	ID    string
	Email string
}

// Provider 签发并校验令牌，同时保存等级的元数据镜像
type Provider interface {
	// VerifyToken 校验 bearer 令牌，失败时返回 ErrInvalidToken
	VerifyToken(ctx context.Context, token string) (*Identity, error)
	// SyncTier 写入等级镜像
	SyncTier(ctx context.Context, identityID, tier string) error
}

// BearerToken 从 Authorization 头取出令牌
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
