package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSecretManager struct {
	values map[string]string
	err    error
	calls  []string
	closed bool
}

func (f *fakeSecretManager) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.calls = append(f.calls, req.GetName())
	if f.err != nil {
		return nil, f.err
	}
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeSecretManager) Close() error {
	f.closed = true
	return nil
}

func writeFallback(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestResolveFetchesAndCaches(t *testing.T) {
	client := &fakeSecretManager{values: map[string]string{
		"projects/acesso-dev/secrets/firebase-api-key/versions/latest": "key-123",
		"projects/other/secrets/firebase-api-key/versions/4":           "pinned",
	}}
	r, err := NewResolver(context.Background(),
		WithSecretManagerClient(client),
		WithProject("acesso-dev"),
		WithFallbackFile(""),
	)
	require.NoError(t, err)

	value, err := r.ResolveSecret(context.Background(), "secret://firebase-api-key")
	require.NoError(t, err)
	require.Equal(t, "key-123", value)

	value, err = r.ResolveSecret(context.Background(), "sm://firebase-api-key")
	require.NoError(t, err)
	require.Equal(t, "key-123", value)
	require.Len(t, client.calls, 1, "second lookup is served from cache")

	value, err = r.ResolveSecret(context.Background(), "secret://firebase-api-key?version=4&project=other")
	require.NoError(t, err)
	require.Equal(t, "pinned", value)

	require.NoError(t, r.Close())
	require.False(t, client.closed, "injected clients are owned by the caller")
}

func TestResolveNotFound(t *testing.T) {
	r, err := NewResolver(context.Background(),
		WithSecretManagerClient(&fakeSecretManager{}),
		WithProject("acesso-dev"),
	)
	require.NoError(t, err)

	_, err = r.ResolveSecret(context.Background(), "secret://missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveFallsBackWhenUnavailable(t *testing.T) {
	path := writeFallback(t, "FIREBASE_API_KEY=local-key\nSESSION_HASH_KEY=\"quoted value\"\n")
	client := &fakeSecretManager{err: status.Error(codes.Unavailable, "offline")}
	r, err := NewResolver(context.Background(),
		WithSecretManagerClient(client),
		WithProject("acesso-dev"),
		WithFallbackFile(path),
	)
	require.NoError(t, err)

	value, err := r.ResolveSecret(context.Background(), "secret://firebase-api-key")
	require.NoError(t, err)
	require.Equal(t, "local-key", value)

	value, err = r.ResolveSecret(context.Background(), "secret://session-hash-key")
	require.NoError(t, err)
	require.Equal(t, "quoted value", value)
}

func TestResolveDoesNotFallBackOnPermanentErrors(t *testing.T) {
	path := writeFallback(t, "FIREBASE_API_KEY=local-key\n")
	client := &fakeSecretManager{err: status.Error(codes.InvalidArgument, "bad name")}
	r, err := NewResolver(context.Background(),
		WithSecretManagerClient(client),
		WithProject("acesso-dev"),
		WithFallbackFile(path),
	)
	require.NoError(t, err)

	_, err = r.ResolveSecret(context.Background(), "secret://firebase-api-key")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotFound))
	require.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
}

func TestResolveWithoutRemoteUsesFallbackOnly(t *testing.T) {
	path := writeFallback(t, "FIREBASE_API_KEY=local-key\n")
	r, err := NewResolver(context.Background(), WithoutRemote(), WithFallbackFile(path))
	require.NoError(t, err)

	value, err := r.ResolveSecret(context.Background(), "secret://firebase-api-key")
	require.NoError(t, err)
	require.Equal(t, "local-key", value)

	_, err = r.ResolveSecret(context.Background(), "secret://other")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveMissingFallbackFileIsNotAnError(t *testing.T) {
	r, err := NewResolver(context.Background(), WithoutRemote(), WithFallbackFile(filepath.Join(t.TempDir(), "absent")))
	require.NoError(t, err)

	_, err = r.ResolveSecret(context.Background(), "secret://anything")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseReferenceRejectsInvalidInput(t *testing.T) {
	for _, ref := range []string{"", "  ", "https://example.com", "secret://"} {
		_, err := parseReference(ref)
		require.Error(t, err, ref)
	}
}

func TestIsReferenceAndFallbackKey(t *testing.T) {
	require.True(t, IsReference("secret://a"))
	require.True(t, IsReference(" sm://a"))
	require.False(t, IsReference("plain"))
	require.Equal(t, "FIREBASE_API_KEY", FallbackKey("firebase-api-key"))
	require.Equal(t, "A_B_C1", FallbackKey("a/b.c1"))
}
