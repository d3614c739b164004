package customer

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOrderCounter struct {
	createdAt []time.Time
	err       error

	gotCustomer int64
	gotSince    time.Time
}

func (m *mockOrderCounter) CountSince(_ context.Context, customerID int64, since time.Time) (int, error) {
	m.gotCustomer = customerID
	m.gotSince = since
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, ts := range m.createdAt {
		if !ts.Before(since) {
			n++
		}
	}
	return n, nil
}

func TestClassifier_IsFrequent(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name      string
		orders    []time.Time
		minOrders int
		days      int
		want      bool
	}{
		{
			name:      "no orders",
			minOrders: 1,
			days:      30,
			want:      false,
		},
		{
			name:      "meets minimum inside window",
			orders:    []time.Time{now.Add(-day), now.Add(-10 * day), now.Add(-29 * day)},
			minOrders: 3,
			days:      30,
			want:      true,
		},
		{
			name:      "old orders ignored",
			orders:    []time.Time{now.Add(-day), now.Add(-31 * day), now.Add(-90 * day)},
			minOrders: 2,
			days:      30,
			want:      false,
		},
		{
			name:      "order exactly at cutoff counts",
			orders:    []time.Time{now.Add(-30 * day)},
			minOrders: 1,
			days:      30,
			want:      true,
		},
		{
			name:      "zero minimum always qualifies",
			minOrders: 0,
			days:      7,
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &mockOrderCounter{createdAt: tt.orders}
			c := NewClassifier(counter)
			c.now = func() time.Time { return now }

			got, err := c.IsFrequent(context.Background(), 7, tt.minOrders, tt.days)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int64(7), counter.gotCustomer)
			assert.True(t, now.AddDate(0, 0, -tt.days).Equal(counter.gotSince))
		})
	}
}

func TestClassifier_IsFrequent_Error(t *testing.T) {
	c := NewClassifier(&mockOrderCounter{err: errors.New("db down")})

	_, err := c.IsFrequent(context.Background(), 3, 1, 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count orders of customer 3")
}
