package identity

import (
	"context"
	"fmt"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/repository"
)

// FromConfig 按配置选择身份提供方，本地提供方同时单独返回
func FromConfig(ctx context.Context, cfg *config.Config, repo *repository.IdentityRepository) (Provider, *LocalProvider, error) {
	switch cfg.IdentityProvider() {
	case config.IdentityProviderLocal:
		local := NewLocalProvider(repo, cfg.JWT)
		return local, local, nil
	case config.IdentityProviderFirebase:
		fb, err := NewFirebaseProvider(ctx, cfg.Firebase)
		if err != nil {
			return nil, nil, err
		}
		return fb, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported identity provider %q", cfg.Identity.Provider)
	}
}
