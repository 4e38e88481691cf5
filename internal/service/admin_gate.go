package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/pkg/metrics"
	"github.com/qs3c/sage_server/internal/repository"
)

var (
	ErrUnauthenticated = errors.New("请提供有效的认证信息")
	ErrForbidden       = errors.New("无管理员权限")
)

// AuthorizedAdmin 通过管理员校验的调用者
type AuthorizedAdmin struct {
	Identity identity.Identity
	User     *model.User
}

// AdminGate 管理接口的权限校验：令牌、白名单、账本等级，每次请求都完整执行
type AdminGate struct {
	provider  identity.Provider
	userRepo  *repository.UserRepository
	allowList map[string]struct{}
	log       *zap.Logger
}

func NewAdminGate(provider identity.Provider, userRepo *repository.UserRepository, allowList []string, log *zap.Logger) *AdminGate {
	allowed := make(map[string]struct{}, len(allowList))
	for _, email := range allowList {
		allowed[email] = struct{}{}
	}
	return &AdminGate{
		provider:  provider,
		userRepo:  userRepo,
		allowList: allowed,
		log:       logger.OrNop(log),
	}
}

// Authorize 校验 Authorization 头
func (g *AdminGate) Authorize(ctx context.Context, authHeader string) (*AuthorizedAdmin, error) {
	token, ok := identity.BearerToken(authHeader)
	if !ok {
		metrics.AdminGateDecisionsTotal.WithLabelValues("unauthenticated").Inc()
		return nil, ErrUnauthenticated
	}

	id, err := g.provider.VerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			metrics.AdminGateDecisionsTotal.WithLabelValues("unauthenticated").Inc()
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("verify admin token: %w", err)
	}

	if _, ok := g.allowList[id.Email]; !ok {
		return nil, g.deny(id, "not in allow-list")
	}

	user, err := g.userRepo.GetByIdentityID(id.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, g.deny(id, "no ledger row")
		}
		return nil, fmt.Errorf("load admin ledger row: %w", err)
	}
	if user.Tier != model.TierAdmin {
		return nil, g.deny(id, "ledger tier is "+user.Tier)
	}

	metrics.AdminGateDecisionsTotal.WithLabelValues("allowed").Inc()
	return &AuthorizedAdmin{Identity: *id, User: user}, nil
}

func (g *AdminGate) deny(id *identity.Identity, reason string) error {
	metrics.AdminGateDecisionsTotal.WithLabelValues("forbidden").Inc()
	g.log.Warn("admin access denied",
		zap.String("identity_id", id.ID),
		zap.String("email", id.Email),
		zap.String("reason", reason))
	return ErrForbidden
}
