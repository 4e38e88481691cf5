package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrInvalidSignature = errors.New("invalid billing signature")
	ErrInvalidPayload   = errors.New("invalid billing payload")
	ErrMissingSecret    = errors.New("billing webhook secret not configured")
)

// Verifier 校验 webhook 签名并解码为事件变体
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: strings.TrimSpace(secret)}
}

// Configured 是否配置了签名密钥
func (v *Verifier) Configured() bool {
	return v.secret != ""
}

// Parse 验签并解码 data.object
func (v *Verifier) Parse(payload []byte, signatureHeader string) (Event, error) {
	if !v.Configured() {
		return nil, ErrMissingSecret
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	env := Envelope{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}

	switch env.Type {
	case TypeCheckoutCompleted:
		var session checkoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: decode checkout session: %v", ErrInvalidPayload, err)
		}
		return session.toEvent(env), nil

	case TypeSubscriptionCreated, TypeSubscriptionUpdated:
		var sub subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: decode subscription: %v", ErrInvalidPayload, err)
		}
		action := ActionUpdated
		if env.Type == TypeSubscriptionCreated {
			action = ActionCreated
		}
		return sub.toChanged(env, action), nil

	case TypeSubscriptionDeleted:
		var sub subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: decode subscription: %v", ErrInvalidPayload, err)
		}
		return SubscriptionDeleted{
			Envelope:       env,
			CustomerID:     strings.TrimSpace(sub.Customer),
			SubscriptionID: sub.ID,
		}, nil

	default:
		return Ignored{Envelope: env}, nil
	}
}

type checkoutSession struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"`
	Customer          string `json:"customer"`
	Subscription      string `json:"subscription"`
	CustomerEmail     string `json:"customer_email"`
	CustomerDetails   struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

func (s checkoutSession) toEvent(env Envelope) CheckoutCompleted {
	email := strings.TrimSpace(s.CustomerDetails.Email)
	if email == "" {
		email = strings.TrimSpace(s.CustomerEmail)
	}
	return CheckoutCompleted{
		Envelope:       env,
		CorrelationID:  strings.TrimSpace(s.ClientReferenceID),
		CustomerID:     strings.TrimSpace(s.Customer),
		SubscriptionID: s.Subscription,
		Email:          email,
	}
}

type subscription struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	Items             struct {
		Data []subscriptionItem `json:"data"`
	} `json:"items"`
}

type subscriptionItem struct {
	CurrentPeriodEnd int64 `json:"current_period_end"`
	Price            struct {
		ID      string          `json:"id"`
		Product json.RawMessage `json:"product"`
	} `json:"price"`
}

func (s subscription) toChanged(env Envelope, action SubscriptionAction) SubscriptionChanged {
	ev := SubscriptionChanged{
		Envelope:          env,
		Action:            action,
		CustomerID:        strings.TrimSpace(s.Customer),
		SubscriptionID:    s.ID,
		Status:            s.Status,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}

	periodEnd := s.CurrentPeriodEnd
	if len(s.Items.Data) > 0 {
		first := s.Items.Data[0]
		ev.PriceID = strings.TrimSpace(first.Price.ID)
		ev.ProductID = productID(first.Price.Product)
		if periodEnd == 0 {
			periodEnd = first.CurrentPeriodEnd
		}
	}
	if periodEnd > 0 {
		end := time.Unix(periodEnd, 0).UTC()
		ev.CurrentPeriodEnd = &end
	}
	return ev
}

// productID 兼容未展开的字符串和展开后的对象
func productID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.ID)
	}
	return ""
}
