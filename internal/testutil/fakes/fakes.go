package fakes

import (
	"context"
	"errors"
	"sync"

	"github.com/qs3c/sage_server/internal/identity"
)

var ErrUnavailable = errors.New("fake upstream unavailable")

// TierWrite 一次等级镜像写入
type TierWrite struct {
	IdentityID string
	Tier       string
}

// IdentityProvider 内存身份提供方，token 直接映射到身份
type IdentityProvider struct {
	mu      sync.Mutex
	tokens  map[string]identity.Identity
	tiers   map[string]string
	writes  []TierWrite
	SyncErr error
}

func NewIdentityProvider() *IdentityProvider {
	return &IdentityProvider{
		tokens: make(map[string]identity.Identity),
		tiers:  make(map[string]string),
	}
}

// AddToken 注册一个可被校验通过的 token
func (p *IdentityProvider) AddToken(token, identityID, email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[token] = identity.Identity{ID: identityID, Email: email}
}

func (p *IdentityProvider) VerifyToken(_ context.Context, token string) (*identity.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.tokens[token]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return &id, nil
}

func (p *IdentityProvider) SyncTier(_ context.Context, identityID, tier string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, TierWrite{IdentityID: identityID, Tier: tier})
	if p.SyncErr != nil {
		return p.SyncErr
	}
	p.tiers[identityID] = tier
	return nil
}

// Tier 返回镜像中的等级
func (p *IdentityProvider) Tier(identityID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tiers[identityID]
}

// Writes 返回所有写入记录，包括失败的
func (p *IdentityProvider) Writes() []TierWrite {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TierWrite, len(p.writes))
	copy(out, p.writes)
	return out
}

var _ identity.Provider = (*IdentityProvider)(nil)

// CustomerDirectory 内存计费客户目录
type CustomerDirectory struct {
	mu     sync.Mutex
	emails map[string]string
	calls  int
	Err    error
}

func NewCustomerDirectory() *CustomerDirectory {
	return &CustomerDirectory{emails: make(map[string]string)}
}

func (d *CustomerDirectory) Add(customerID, email string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails[customerID] = email
}

func (d *CustomerDirectory) CustomerEmail(_ context.Context, customerID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.Err != nil {
		return "", d.Err
	}
	return d.emails[customerID], nil
}

// Calls 返回查询次数
func (d *CustomerDirectory) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
