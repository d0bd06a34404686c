package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	t.Parallel()

	key := objectKey("media", "Avatar.PNG")
	require.True(t, strings.HasPrefix(key, "media/"))
	require.True(t, strings.HasSuffix(key, ".png"))

	// keys must be unique even for the same filename
	require.NotEqual(t, key, objectKey("media", "Avatar.PNG"))

	require.NotContains(t, objectKey("", "photo"), "/")
	require.True(t, strings.HasPrefix(objectKey("/media/", "a.jpg"), "media/"))
}

func TestObjectURL(t *testing.T) {
	t.Parallel()

	withBase := &S3Service{publicBaseURL: "https://cdn.example.com"}
	require.Equal(t, "https://cdn.example.com/media/k.png", withBase.objectURL("bucket", "media/k.png"))

	bare := &S3Service{}
	require.Equal(t, "https://bucket.s3.amazonaws.com/media/k.png", bare.objectURL("bucket", "media/k.png"))
}
