package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsdigest/internal/id/uuid"
	"github.com/JakeFAU/newsdigest/internal/news"
	"github.com/JakeFAU/newsdigest/internal/storage/storetest"
)

func TestStoreContract(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(*testing.T) news.Store { return NewStore(uuid.New()) })
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

func TestUpsertPropagatesIDFailure(t *testing.T) {
	t.Parallel()

	s := NewStore(failingIDs{})
	_, err := s.Upsert(context.Background(), storetest.Item(1, news.CategoryPolitics))
	require.ErrorContains(t, err, "entropy exhausted")
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewStore(uuid.New())
	ctx := context.Background()
	id, err := s.Upsert(ctx, storetest.Item(1, news.CategoryPolitics))
	require.NoError(t, err)

	summary := "asli"
	require.NoError(t, s.Update(ctx, id, news.Patch{Summary: &summary}))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	*got.Summary = "diubah"

	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "asli", *again.Summary)
}
