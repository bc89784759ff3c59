package objectstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkify/datalake-etl/internal/adapter"
	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/mocks"
	"github.com/sparkify/datalake-etl/internal/objectstore"
)

func TestGCSStore(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGCSClient(ctrl)
	store := objectstore.NewGCSStore(client)

	client.EXPECT().ListObjects(ctx, "lake", "songs/").Return([]adapter.GCSObject{
		{Name: "songs/_SUCCESS", Size: 0},
		{Name: "songs/part-00000.parquet", Size: 12},
	}, nil)
	objects, err := store.List(ctx, "lake", "songs/")
	require.NoError(t, err)
	assert.Equal(t, []objectstore.Object{
		{Key: "songs/_SUCCESS", Size: 0},
		{Key: "songs/part-00000.parquet", Size: 12},
	}, objects)

	client.EXPECT().ReadObject(ctx, "lake", "songs/missing").Return(nil, adapter.ErrGCSObjectNotExist)
	_, err = store.Get(ctx, "lake", "songs/missing")
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)

	client.EXPECT().WriteObject(ctx, "lake", "songs/_SUCCESS", []byte(nil), objectstore.ContentTypeText).Return(nil)
	require.NoError(t, store.Put(ctx, "lake", "songs/_SUCCESS", nil, objectstore.ContentTypeText))
}

func TestGCSStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGCSClient(ctrl)
	store := objectstore.NewGCSStore(client)

	client.EXPECT().ListObjects(ctx, "lake", "time/").Return([]adapter.GCSObject{
		{Name: "time/a"}, {Name: "time/b"},
	}, nil)
	client.EXPECT().DeleteObject(ctx, "lake", "time/a").Return(nil)
	// concurrently deleted objects are ignored
	client.EXPECT().DeleteObject(ctx, "lake", "time/b").Return(adapter.ErrGCSObjectNotExist)

	require.NoError(t, store.DeletePrefix(ctx, "lake", "time/"))

	client.EXPECT().ListObjects(ctx, "lake", "time/").Return([]adapter.GCSObject{{Name: "time/a"}}, nil)
	client.EXPECT().DeleteObject(ctx, "lake", "time/a").Return(errors.New("permission denied"))

	err := store.DeletePrefix(ctx, "lake", "time/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
