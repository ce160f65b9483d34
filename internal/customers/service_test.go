package customers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	nextID    int64
	customers map[int64]Customer
}

func newMemRepo() *memRepo {
	return &memRepo{customers: map[int64]Customer{}}
}

func (r *memRepo) Insert(_ context.Context, c Customer) (Customer, error) {
	for _, existing := range r.customers {
		if c.TaxID != "" && existing.TaxID == c.TaxID {
			return Customer{}, ErrAlreadyExists
		}
	}
	r.nextID++
	c.ID = r.nextID
	r.customers[c.ID] = c
	return c, nil
}

func (r *memRepo) Update(_ context.Context, id int64, updates map[string]any) (Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	for column, value := range updates {
		switch column {
		case "name":
			c.Name = value.(string)
		case "credit_limit":
			c.CreditLimit = value.(float64)
		case "is_active":
			c.IsActive = value.(bool)
		}
	}
	r.customers[id] = c
	return c, nil
}

func (r *memRepo) Get(_ context.Context, id int64) (Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (r *memRepo) List(_ context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	out := []Customer{}
	for _, c := range r.customers {
		if req.ActiveOnly && !c.IsActive {
			continue
		}
		if req.WithDebt && c.CurrentCredit <= 0 {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func TestCreateNormalizesIdentity(t *testing.T) {
	svc := NewService(newMemRepo())

	c, err := svc.Create(context.Background(), CreateCustomerRequest{
		Name:        "  Constructora Los Andes SpA ",
		TaxID:       "76.222.333-k",
		Email:       "Compras@LosAndes.CL",
		CreditLimit: 500000,
	})
	require.NoError(t, err)

	assert.Equal(t, "Constructora Los Andes SpA", c.Name)
	assert.Equal(t, "76.222.333-K", c.TaxID)
	assert.Equal(t, "compras@losandes.cl", c.Email)
	assert.True(t, c.IsActive)
}

func TestCreateRejectsDuplicateTaxID(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCustomerRequest{Name: "Uno", TaxID: "12.345.678-9"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateCustomerRequest{Name: "Dos", TaxID: "12.345.678-9"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCheckCreditBound(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateCustomerRequest{Name: "Cliente", CreditLimit: 100000})
	require.NoError(t, err)

	_, err = svc.CheckCredit(ctx, c.ID, 100000)
	assert.NoError(t, err)

	_, err = svc.CheckCredit(ctx, c.ID, 100001)
	assert.ErrorIs(t, err, ErrCreditExceeded)

	// Used credit shrinks the available room.
	used := repo.customers[c.ID]
	used.CurrentCredit = 80000
	repo.customers[c.ID] = used

	_, err = svc.CheckCredit(ctx, c.ID, 20000)
	assert.NoError(t, err)
	_, err = svc.CheckCredit(ctx, c.ID, 20001)
	assert.ErrorIs(t, err, ErrCreditExceeded)
}

func TestAvailableCreditNeverNegative(t *testing.T) {
	c := Customer{CreditLimit: 100, CurrentCredit: 150}
	assert.Equal(t, 0.0, c.AvailableCredit())
}

func TestDeactivateKeepsCustomerResolvable(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateCustomerRequest{Name: "Cliente"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, c.ID))

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
