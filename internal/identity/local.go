package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/pkg/jwt"
	"github.com/qs3c/sage_server/internal/pkg/oauth"
	"github.com/qs3c/sage_server/internal/repository"
)

// LocalProvider 使用本地 identities 表与 HS256 令牌的身份提供方
type LocalProvider struct {
	repo        *repository.IdentityRepository
	secret      string
	expireHours int
}

func NewLocalProvider(repo *repository.IdentityRepository, cfg config.JWTConfig) *LocalProvider {
	return &LocalProvider{
		repo:        repo,
		secret:      cfg.Secret,
		expireHours: cfg.ExpireHours,
	}
}

func (p *LocalProvider) VerifyToken(_ context.Context, token string) (*Identity, error) {
	claims, err := jwt.ParseToken(token, p.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	record, err := p.repo.GetByID(claims.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		return nil, err
	}

	return &Identity{ID: record.ID, Email: record.Email}, nil
}

func (p *LocalProvider) SyncTier(_ context.Context, identityID, tier string) error {
	err := p.repo.UpdateFields(identityID, map[string]interface{}{"tier": tier})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrIdentityNotFound
	}
	return err
}

// Register 创建带密码的身份
func (p *LocalProvider) Register(_ context.Context, email, password string) (*model.Identity, error) {
	exists, err := p.repo.ExistsByEmail(email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	record := &model.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: &hash,
		Tier:         model.TierBasic,
	}
	if err := p.repo.Create(record); err != nil {
		return nil, err
	}
	return record, nil
}

// Authenticate 校验邮箱密码，任何失败都返回同一错误
func (p *LocalProvider) Authenticate(_ context.Context, email, password string) (*model.Identity, error) {
	record, err := p.repo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if record.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*record.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return record, nil
}

// IssueToken 为身份签发 bearer 令牌
func (p *LocalProvider) IssueToken(record *model.Identity) (string, error) {
	return jwt.GenerateToken(record.ID, record.Email, p.secret, p.expireHours)
}

// FindByEmail 按邮箱查找身份
func (p *LocalProvider) FindByEmail(_ context.Context, email string) (*model.Identity, error) {
	record, err := p.repo.GetByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIdentityNotFound
	}
	return record, err
}

// SetPassword 更新密码
func (p *LocalProvider) SetPassword(_ context.Context, identityID, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	err = p.repo.UpdateFields(identityID, map[string]interface{}{"password_hash": hash})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrIdentityNotFound
	}
	return err
}

// LinkGithub 按 GitHub ID 或已验证邮箱找到身份，都没有时新建
func (p *LocalProvider) LinkGithub(_ context.Context, profile *oauth.GithubProfile) (*model.Identity, error) {
	record, err := p.repo.GetByGithubID(profile.ID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	record, err = p.repo.GetByEmail(profile.Email)
	switch {
	case err == nil:
		if err := p.repo.UpdateFields(record.ID, map[string]interface{}{"github_id": profile.ID}); err != nil {
			return nil, err
		}
		record.GithubID = &profile.ID
		return record, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	githubID := profile.ID
	record = &model.Identity{
		ID:       uuid.NewString(),
		Email:    profile.Email,
		GithubID: &githubID,
		Tier:     model.TierBasic,
	}
	if err := p.repo.Create(record); err != nil {
		return nil, err
	}
	return record, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

var _ Provider = (*LocalProvider)(nil)
