package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profileColumns = []string{
	"id", "name", "sector", "address", "phone", "routing_key", "timezone",
	"business_hours", "prices", "catalog", "payment_methods",
}

func TestRepositoryByRoutingKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT id, name").
		WithArgs("33612345678").
		WillReturnRows(pgxmock.NewRows(profileColumns).AddRow(
			id, "Salon Léa", "hair salon", "1 rue de la Paix", "+33612345678", "33612345678", "Europe/Paris",
			[]byte(`{"lundi":{"is_open":true,"open":"09:00","close":"18:00"}}`),
			[]byte(`{"coupe":"25€"}`), "Coupe femme 25€", []string{"cash", "card"},
		))

	repo := NewRepository(mock)
	profile, err := repo.ByRoutingKey(context.Background(), "whatsapp:+33 6 12 34 56 78")
	require.NoError(t, err)
	assert.Equal(t, id, profile.ID)
	assert.Equal(t, "25€", profile.Prices["coupe"])
	assert.True(t, profile.Hours["lundi"].IsOpen)
	assert.Equal(t, []string{"cash", "card"}, profile.PaymentMethods)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryNumericPrices(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name").
		WithArgs("salon-lyon").
		WillReturnRows(pgxmock.NewRows(profileColumns).AddRow(
			uuid.New(), "Salon Lyon", "hair salon", "", "", "salon-lyon", "Europe/Paris",
			[]byte(`{}`),
			[]byte(`{"coupe": 25, "brushing": 19.5, "couleur": "dès 60€", "soin": null}`), "", []string{},
		))

	profile, err := NewRepository(mock).ByRoutingKey(context.Background(), "salon-lyon")
	require.NoError(t, err)
	assert.Equal(t, PriceList{"coupe": "25", "brushing": "19.5", "couleur": "dès 60€"}, profile.Prices)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryByRoutingKeyNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name").
		WithArgs("999").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewRepository(mock).ByRoutingKey(context.Background(), "999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryEmptyKeyShortCircuits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRepository(mock).ByRoutingKey(context.Background(), " ")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
