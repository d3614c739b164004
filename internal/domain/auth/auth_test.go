package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/kart-commerce/internal/domain/customer"
)

type memCustomers struct {
	byID map[int64]*customer.Customer
}

func newMemCustomers() *memCustomers {
	return &memCustomers{byID: make(map[int64]*customer.Customer)}
}

func (m *memCustomers) GetByID(_ context.Context, id int64) (*customer.Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

func (m *memCustomers) GetByUsername(_ context.Context, username string) (*customer.Customer, error) {
	for _, c := range m.byID {
		if c.Username == username {
			return c, nil
		}
	}
	return nil, customer.ErrNotFound
}

func (m *memCustomers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *memCustomers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	for _, c := range m.byID {
		if c.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCustomers) List(context.Context) ([]customer.Customer, error) { return nil, nil }

func (m *memCustomers) Create(_ context.Context, c *customer.Customer) error {
	c.ID = int64(len(m.byID) + 1)
	m.byID[c.ID] = c
	return nil
}

func (m *memCustomers) Update(context.Context, *customer.Customer) error { return nil }
func (m *memCustomers) Delete(context.Context, int64) error              { return nil }

func newTestService(t *testing.T) *Service {
	t.Helper()
	tokens, err := NewTokens([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	return NewService(newMemCustomers(), BcryptHasher{Cost: bcrypt.MinCost}, tokens)
}

func TestService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	sess, err := svc.Register(ctx, RegisterInput{Username: "ana", Email: "ana@example.com", Password: "pa55word"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.NotEqual(t, "pa55word", sess.Customer.PasswordHash)
	assert.True(t, sess.Customer.HasRole(customer.RoleUser))

	claims, err := svc.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.Customer.ID, claims.CustomerID)
	assert.Equal(t, "ana", claims.Username)

	login, err := svc.Login(ctx, "ana", "pa55word")
	require.NoError(t, err)
	assert.Equal(t, sess.Customer.ID, login.Customer.ID)

	_, err = svc.Login(ctx, "ana", "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody", "pa55word")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestService_RegisterDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Register(ctx, RegisterInput{Username: "ana", Email: "ana@example.com", Password: "x"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "ana", Email: "other@example.com", Password: "x"})
	require.ErrorIs(t, err, customer.ErrUsernameTaken)

	_, err = svc.Register(ctx, RegisterInput{Username: "other", Email: "ana@example.com", Password: "x"})
	require.ErrorIs(t, err, customer.ErrEmailTaken)
}

func TestTokens_Verify(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tokens, err := NewTokens([]byte("secret"), time.Minute)
	require.NoError(t, err)
	tokens.now = func() time.Time { return now }

	token, err := tokens.Issue(&customer.Customer{ID: 9, Username: "bob"})
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		tokens.now = func() time.Time { return now.Add(2 * time.Minute) }
		defer func() { tokens.now = func() time.Time { return now } }()

		_, err := tokens.Verify(token)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewTokens([]byte("different"), time.Minute)
		require.NoError(t, err)
		other.now = tokens.now

		_, err = other.Verify(token)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Verify("not-a-token")
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestTokens_Roles(t *testing.T) {
	tokens, err := NewTokens([]byte("secret"), time.Minute)
	require.NoError(t, err)

	token, err := tokens.Issue(&customer.Customer{
		ID: 1, Username: "root", Roles: []customer.Role{customer.RoleAdmin, customer.RoleUser},
	})
	require.NoError(t, err)
	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.True(t, claims.HasRole(customer.RoleAdmin))
	assert.True(t, claims.HasRole(customer.RoleUser))

	token, err = tokens.Issue(&customer.Customer{ID: 2, Username: "ana", Roles: []customer.Role{customer.RoleUser}})
	require.NoError(t, err)
	claims, err = tokens.Verify(token)
	require.NoError(t, err)
	assert.False(t, claims.HasRole(customer.RoleAdmin))
}

func TestNewTokens_EmptySecret(t *testing.T) {
	_, err := NewTokens(nil, time.Hour)
	require.Error(t, err)
}
