package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/pkg/billing"
	"github.com/qs3c/sage_server/internal/repository"
	"github.com/qs3c/sage_server/internal/testutil"
)

type stubSessions struct {
	checkout     billing.CheckoutInput
	portalFor    string
	defaultPrice string
	err          error
}

func (s *stubSessions) CreateCheckoutSession(_ context.Context, in billing.CheckoutInput) (string, error) {
	s.checkout = in
	if s.err != nil {
		return "", s.err
	}
	return "https://checkout.example.com/" + in.PriceID, nil
}

func (s *stubSessions) CreatePortalSession(_ context.Context, customerID string) (string, error) {
	s.portalFor = customerID
	if s.err != nil {
		return "", s.err
	}
	return "https://portal.example.com/" + customerID, nil
}

func (s *stubSessions) DefaultPriceID() string {
	return s.defaultPrice
}

func TestBillingService_Checkout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	sessions := &stubSessions{defaultPrice: "price_default"}
	users := NewUserService(repository.NewUserRepository(db), testConfig())
	svc := NewBillingService(users, repository.NewPlanRepository(db), sessions, nil)

	testutil.TestPlan(t, db, "Pro", testutil.WithPrice("price_pro", "prod_pro"))
	testutil.TestPlan(t, db, "Legacy")
	caller := &identity.Identity{ID: "identity-buyer", Email: "buyer@example.com"}

	url, err := svc.Checkout(context.Background(), caller, "")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/price_default", url)
	assert.Equal(t, "identity-buyer", sessions.checkout.IdentityID)
	assert.Equal(t, "buyer@example.com", sessions.checkout.Email)
	assert.Empty(t, sessions.checkout.CustomerID)

	url, err = svc.Checkout(context.Background(), caller, "Pro")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/price_pro", url)

	_, err = svc.Checkout(context.Background(), caller, "Legacy")
	assert.ErrorIs(t, err, ErrPlanUnavailable)
	_, err = svc.Checkout(context.Background(), caller, "Missing")
	assert.ErrorIs(t, err, ErrPlanUnavailable)

	sessions.err = errors.New("stripe down")
	_, err = svc.Checkout(context.Background(), caller, "")
	assert.Error(t, err)
}

func TestBillingService_CheckoutReusesCustomer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	sessions := &stubSessions{defaultPrice: "price_default"}
	svc := NewBillingService(NewUserService(repository.NewUserRepository(db), testConfig()),
		repository.NewPlanRepository(db), sessions, nil)

	user := testutil.TestUser(t, db, testutil.WithBillingCustomer("cus_existing", model.StatusCanceled))

	_, err := svc.Checkout(context.Background(), callerFor(user), "")
	require.NoError(t, err)
	assert.Equal(t, "cus_existing", sessions.checkout.CustomerID)
}

func TestBillingService_Portal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	sessions := &stubSessions{}
	svc := NewBillingService(NewUserService(repository.NewUserRepository(db), testConfig()),
		repository.NewPlanRepository(db), sessions, nil)

	linked := testutil.TestUser(t, db, testutil.WithBillingCustomer("cus_portal", model.StatusActive))
	unlinked := testutil.TestUser(t, db)

	url, err := svc.Portal(context.Background(), callerFor(linked))
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com/cus_portal", url)

	_, err = svc.Portal(context.Background(), callerFor(unlinked))
	assert.ErrorIs(t, err, ErrBillingNotLinked)

	_, err = svc.Portal(context.Background(), &identity.Identity{ID: "nobody"})
	assert.ErrorIs(t, err, ErrBillingNotLinked)
}
