package billing

import (
	"errors"
	"time"
)

// 计费方事件类型
const (
	TypeCheckoutCompleted   = "checkout.session.completed"
	TypeSubscriptionCreated = "customer.subscription.created"
	TypeSubscriptionUpdated = "customer.subscription.updated"
	TypeSubscriptionDeleted = "customer.subscription.deleted"
)

var ErrUnhandledEvent = errors.New("unhandled billing event")

// Envelope 所有事件共有的元数据
type Envelope struct {
	ID      string
	Type    string
	Created time.Time
}

// Event 已验签的计费事件，只能是本包定义的几种变体
type Event interface {
	Meta() Envelope
	billingEvent()
}

// CheckoutCompleted 结账完成，CorrelationID 为发起结账时写入的身份 ID
type CheckoutCompleted struct {
	Envelope
	CorrelationID  string
	CustomerID     string
	SubscriptionID string
	Email          string
}

// SubscriptionAction 订阅变更的动作
type SubscriptionAction string

const (
	ActionCreated SubscriptionAction = "created"
	ActionUpdated SubscriptionAction = "updated"
)

// SubscriptionChanged 订阅创建或更新
type SubscriptionChanged struct {
	Envelope
	Action            SubscriptionAction
	CustomerID        string
	SubscriptionID    string
	Status            string
	PriceID           string
	ProductID         string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
}

// SubscriptionDeleted 订阅终止
type SubscriptionDeleted struct {
	Envelope
	CustomerID     string
	SubscriptionID string
}

// Ignored 不参与同步的事件类型
type Ignored struct {
	Envelope
}

func (e Envelope) Meta() Envelope { return e }

func (CheckoutCompleted) billingEvent()   {}
func (SubscriptionChanged) billingEvent() {}
func (SubscriptionDeleted) billingEvent() {}
func (Ignored) billingEvent()             {}
