package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/kerja/domain"
)

func TestCatalogList(t *testing.T) {
	catalog := NewCatalog()

	list, err := catalog.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "Store Manager", list[0].Title)
	assert.Equal(t, "Kuala Lumpur", list[0].Location)
	assert.Equal(t, "Part-time", list[1].Type)
}

func TestCatalogGetByID(t *testing.T) {
	catalog := NewCatalog()

	job, err := catalog.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Promoter", job.Title)
	assert.Equal(t, "Penang", job.Location)

	_, err = catalog.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}
