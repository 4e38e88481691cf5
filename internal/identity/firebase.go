package identity

import (
	"context"
	"encoding/base64"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/qs3c/sage_server/config"
)

const tierClaim = "tier"

// FirebaseProvider 使用 Firebase Auth 校验 ID token，等级镜像写入自定义声明
type FirebaseProvider struct {
	client *auth.Client
}

func NewFirebaseProvider(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseProvider, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.CredentialsJSONBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(cfg.CredentialsJSONBase64)
		if err != nil {
			return nil, fmt.Errorf("decode firebase credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}

	return &FirebaseProvider{client: client}, nil
}

func (p *FirebaseProvider) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	verified, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return identityFromToken(verified), nil
}

// identityFromToken 仅在 email_verified 为真时采用邮箱
func identityFromToken(token *auth.Token) *Identity {
	id := &Identity{ID: token.UID}
	if verified, _ := token.Claims["email_verified"].(bool); verified {
		id.Email, _ = token.Claims["email"].(string)
	}
	return id
}

// SyncTier 合并写入自定义声明，保留其他声明
func (p *FirebaseProvider) SyncTier(ctx context.Context, identityID, tier string) error {
	user, err := p.client.GetUser(ctx, identityID)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("get firebase user: %w", err)
	}

	claims := make(map[string]interface{}, len(user.CustomClaims)+1)
	for k, v := range user.CustomClaims {
		claims[k] = v
	}
	claims[tierClaim] = tier

	if err := p.client.SetCustomUserClaims(ctx, identityID, claims); err != nil {
		return fmt.Errorf("set firebase claims: %w", err)
	}
	return nil
}

var _ Provider = (*FirebaseProvider)(nil)
