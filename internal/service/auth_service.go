package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/model/dto"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/pkg/oauth"
	"github.com/qs3c/sage_server/internal/pkg/tokenstore"
)

var (
	ErrEmailExists        = errors.New("邮箱已被注册")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrInvalidResetToken  = errors.New("重置链接无效或已过期")
	ErrInvalidOAuthState  = errors.New("登录状态无效或已过期")
	ErrGithubDisabled     = errors.New("未启用 GitHub 登录")
)

// Mailer 发送密码重置邮件
type Mailer interface {
	SendPasswordReset(to, resetLink string) error
}

// AuthService 本地身份提供方的注册、登录与密码找回
type AuthService struct {
	provider    *identity.LocalProvider
	users       *UserService
	resetTokens *tokenstore.Store
	oauthStates *tokenstore.Store
	github      *oauth.GithubOAuth
	mailer      Mailer
	cfg         *config.Config
	log         *zap.Logger
}

func NewAuthService(
	provider *identity.LocalProvider,
	users *UserService,
	resetTokens *tokenstore.Store,
	oauthStates *tokenstore.Store,
	github *oauth.GithubOAuth,
	mailer Mailer,
	cfg *config.Config,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		provider:    provider,
		users:       users,
		resetTokens: resetTokens,
		oauthStates: oauthStates,
		github:      github,
		mailer:      mailer,
		cfg:         cfg,
		log:         logger.OrNop(log),
	}
}

// Register 用户注册
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.LoginResponse, error) {
	record, err := s.provider.Register(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	id := &identity.Identity{ID: record.ID, Email: record.Email}
	if _, err := s.users.EnsureProfile(ctx, id); err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(req.DisplayName); name != "" {
		if _, err := s.users.UpdateProfile(ctx, id, &dto.UpdateProfileRequest{DisplayName: &name}); err != nil {
			return nil, err
		}
	}

	return s.loginResponse(ctx, record)
}

// Login 用户登录
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	record, err := s.provider.Authenticate(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return s.loginResponse(ctx, record)
}

// ForgotPassword 发送重置邮件，不论邮箱是否存在都返回成功
func (s *AuthService) ForgotPassword(ctx context.Context, email string) {
	email = strings.TrimSpace(email)

	record, err := s.provider.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, identity.ErrIdentityNotFound) {
			s.log.Error("password reset lookup failed", zap.Error(err))
		}
		return
	}

	token, err := s.resetTokens.Issue(ctx, record.ID)
	if err != nil {
		s.log.Error("issue password reset token failed", zap.String("identity_id", record.ID), zap.Error(err))
		return
	}

	if err := s.mailer.SendPasswordReset(record.Email, s.resetLink(token)); err != nil {
		s.log.Error("send password reset mail failed", zap.String("identity_id", record.ID), zap.Error(err))
	}
}

// ResetPassword 消费一次性令牌并设置新密码
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	identityID, err := s.resetTokens.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, tokenstore.ErrTokenInvalid) {
			return ErrInvalidResetToken
		}
		return err
	}

	if err := s.provider.SetPassword(ctx, identityID, password); err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	return nil
}

// GithubAuthURL 生成带一次性 state 的授权地址
func (s *AuthService) GithubAuthURL(ctx context.Context) (string, error) {
	if !s.github.Enabled() {
		return "", ErrGithubDisabled
	}
	state, err := s.oauthStates.Issue(ctx, "github")
	if err != nil {
		return "", err
	}
	return s.github.GetAuthURL(state), nil
}

// GithubCallback 处理 GitHub OAuth 回调
func (s *AuthService) GithubCallback(ctx context.Context, state, code string) (*dto.LoginResponse, error) {
	if !s.github.Enabled() {
		return nil, ErrGithubDisabled
	}
	if _, err := s.oauthStates.Consume(ctx, state); err != nil {
		if errors.Is(err, tokenstore.ErrTokenInvalid) {
			return nil, ErrInvalidOAuthState
		}
		return nil, err
	}

	token, err := s.github.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	profile, err := s.github.FetchProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get github user: %w", err)
	}

	record, err := s.provider.LinkGithub(ctx, profile)
	if err != nil {
		return nil, err
	}
	return s.loginResponse(ctx, record)
}

func (s *AuthService) loginResponse(ctx context.Context, record *model.Identity) (*dto.LoginResponse, error) {
	user, err := s.users.EnsureProfile(ctx, &identity.Identity{ID: record.ID, Email: record.Email})
	if err != nil {
		return nil, err
	}

	token, err := s.provider.IssueToken(record)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token: token,
		User:  buildUserInfo(user),
	}, nil
}

func (s *AuthService) resetLink(token string) string {
	base := s.cfg.Email.ResetURL
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}
