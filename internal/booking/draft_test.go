package booking

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-concierge/internal/extraction"
	"github.com/wolfman30/booking-concierge/internal/schedule"
)

func TestRedisDraftStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisDraftStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()
	convID := uuid.New()

	empty, err := store.Load(ctx, convID)
	require.NoError(t, err)
	assert.True(t, empty.Empty())

	require.NoError(t, store.Save(ctx, convID, Draft{Date: "2025-06-11", Service: "coupe"}))
	assert.Equal(t, draftTTL, mr.TTL(draftKey(convID)))

	got, err := store.Load(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, Draft{Date: "2025-06-11", Service: "coupe"}, got)

	require.NoError(t, store.Save(ctx, convID, Draft{}))
	assert.False(t, mr.Exists(draftKey(convID)))
}

func TestDraftApplyPrefersNewValues(t *testing.T) {
	d := Draft{Date: "2025-06-11", Time: "10:00", Service: "coupe", Name: "Léa"}
	newTime := schedule.MustParseTimeOfDay("16:00")

	res := d.Apply(extraction.Result{HasAppointment: true, Time: &newTime, Service: "couleur"})
	assert.Equal(t, "2025-06-11", schedule.FormatDate(*res.Date))
	assert.Equal(t, "16:00", res.Time.String())
	assert.Equal(t, "couleur", res.Service)
	assert.Equal(t, "Léa", res.Name)
	assert.True(t, res.ReadyToCreate)
	assert.Empty(t, res.MissingInfo)
}

func TestDraftFrom(t *testing.T) {
	date := schedule.MustParseDate("2025-06-11")
	d := DraftFrom(extraction.Result{Date: &date, Name: "Sam"})
	assert.Equal(t, Draft{Date: "2025-06-11", Name: "Sam"}, d)
}
