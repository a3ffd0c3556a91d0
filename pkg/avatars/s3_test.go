package avatars

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "abc-123/avatar.jpg", Key("abc-123"))
}

func TestPublicURL(t *testing.T) {
	store := &S3Store{bucket: "feather-avatars"}
	assert.Equal(t,
		"https://feather-avatars.s3.amazonaws.com/abc-123/avatar.jpg",
		store.PublicURL("abc-123"))
}

func TestPublicURLCustomEndpoint(t *testing.T) {
	store := &S3Store{bucket: "feather-avatars", endpoint: "http://localhost:9000"}
	assert.Equal(t,
		"http://localhost:9000/feather-avatars/abc-123/avatar.jpg",
		store.PublicURL("abc-123"))
}
