package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praveen131106/ivr-modern/pkg/domain"
	"github.com/praveen131106/ivr-modern/pkg/persistence/middleware"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func newSession(id string) *domain.SessionState {
	s := domain.NewSession(id, "cancellation", "confirm_cancel", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	s.Collect("pnr", domain.Field{Value: "4512678901", Confidence: 1}, 0.9)
	s.Record(domain.SpeakerCaller, "my pnr is 4512678901", domain.ChannelSpeech, s.StartedAt)
	return s
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := NewMockStore()
	key := generateKey(t)
	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(underlyingStore)

	ctx := context.Background()
	original := newSession("enc-session")
	require.NoError(t, secureStore.Save(ctx, original.SessionID, original))

	stored, err := underlyingStore.Load(ctx, original.SessionID)
	require.NoError(t, err)
	assert.NotContains(t, stored.CollectedData, "pnr")
	assert.Contains(t, stored.CollectedData, "__encrypted__")
	assert.Empty(t, stored.Transcript)
	assert.Empty(t, stored.CurrentState)
	assert.Equal(t, original.LastActivityAt, stored.LastActivityAt, "eviction still sees activity")

	loaded, err := secureStore.Load(ctx, original.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "4512678901", loaded.CollectedData["pnr"].Value)
	assert.Equal(t, "confirm_cancel", loaded.CurrentState)
	assert.Len(t, loaded.Transcript, 1)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)

	ctx := context.Background()
	original := newSession("rotation-session")
	require.NoError(t, secureStoreOld.Save(ctx, original.SessionID, original))

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, original.SessionID)
	require.NoError(t, err, "fallback key must decrypt")

	loaded.CurrentState = "cancelled"
	require.NoError(t, secureStoreNew.Save(ctx, original.SessionID, loaded))

	_, err = secureStoreOld.Load(ctx, original.SessionID)
	assert.Error(t, err, "old key alone cannot read new-key envelopes")
}

func TestEncryptionMiddleware_RejectsPlainSessions(t *testing.T) {
	underlyingStore := NewMockStore()
	ctx := context.Background()
	require.NoError(t, underlyingStore.Save(ctx, "plain", newSession("plain")))

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	_, err := secureStore.Load(ctx, "plain")
	assert.ErrorContains(t, err, "missing encrypted data envelope")

	_, err = secureStore.Load(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey("not base64!")
	assert.Error(t, err)

	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}
