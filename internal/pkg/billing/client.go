package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"

	"github.com/qs3c/sage_server/config"
)

var (
	ErrNotConfigured   = errors.New("billing provider not configured")
	ErrCustomerDeleted = errors.New("billing customer deleted")
	ErrNoSessionURL    = errors.New("billing provider returned no session url")
)

// CheckoutInput 发起订阅结账所需参数
type CheckoutInput struct {
	IdentityID string
	Email      string
	CustomerID string
	PriceID    string
}

// Client 计费方 API 客户端
type Client struct {
	cfg config.BillingConfig

	getCustomer           func(id string, params *stripe.CustomerParams) (*stripe.Customer, error)
	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	createPortalSession   func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

func NewClient(cfg config.BillingConfig) *Client {
	stripe.Key = strings.TrimSpace(cfg.SecretKey)
	return &Client{
		cfg:                   cfg,
		getCustomer:           customer.Get,
		createCheckoutSession: stripesession.New,
		createPortalSession:   portalsession.New,
	}
}

func (c *Client) configured() bool {
	return strings.TrimSpace(c.cfg.SecretKey) != ""
}

// CustomerEmail 查询计费客户的邮箱，用于找不到客户 ID 时的回退匹配
func (c *Client) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cust, err := c.getCustomer(customerID, params)
	if err != nil {
		return "", err
	}
	if cust.Deleted {
		return "", ErrCustomerDeleted
	}
	return strings.TrimSpace(cust.Email), nil
}

// CreateCheckoutSession 创建订阅结账，client_reference_id 写入身份 ID
func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(c.cfg.SuccessURL),
		CancelURL:         stripe.String(c.cfg.CancelURL),
		ClientReferenceID: stripe.String(in.IdentityID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{"identity_id": in.IdentityID},
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	} else if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}
	params.Context = ctx

	session, err := c.createCheckoutSession(params)
	if err != nil {
		return "", err
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", ErrNoSessionURL
	}
	return session.URL, nil
}

// CreatePortalSession 打开客户自助门户
func (c *Client) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.cfg.PortalReturnURL),
	}
	params.Context = ctx

	session, err := c.createPortalSession(params)
	if err != nil {
		return "", err
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", ErrNoSessionURL
	}
	return session.URL, nil
}

// DefaultPriceID 未指定套餐时使用的价格
func (c *Client) DefaultPriceID() string {
	return strings.TrimSpace(c.cfg.DefaultPriceID)
}
