package cryptox

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef-test-secret"

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := NewVault(testSecret)
	require.NoError(t, err)
	return v
}

func TestNewVault_ShortSecret(t *testing.T) {
	for _, s := range []string{"", "short", "fifteen-bytes!!"} {
		_, err := NewVault(s)
		if !errors.Is(err, common.ErrConfiguration) {
			t.Fatalf("secret %q: want ErrConfiguration, got %v", s, err)
		}
	}

	_, err := NewVault("sixteen-bytes!!!")
	assert.NoError(t, err)
}

func TestDeriveOwnerKey(t *testing.T) {
	k1 := DeriveOwnerKey([]byte(testSecret), "user-1")
	k2 := DeriveOwnerKey([]byte(testSecret), "user-1")
	k3 := DeriveOwnerKey([]byte(testSecret), "user-2")

	assert.Len(t, k1, 32)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestVault_RoundTrip(t *testing.T) {
	v := newTestVault(t)

	cases := [][]byte{
		[]byte(`{"accessToken":"abc"}`),
		[]byte(""),
		bytes.Repeat([]byte("x"), 4096),
	}
	for _, p := range cases {
		ct, err := v.Encrypt(p, "owner")
		require.NoError(t, err)

		got, err := v.Decrypt(ct, "owner")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(p, got), "round trip mismatch for %d bytes", len(p))
	}
}

func TestVault_Layout(t *testing.T) {
	v := newTestVault(t)

	ct, err := v.Encrypt([]byte("hello"), "owner")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	assert.Len(t, raw, nonceSize+tagSize+len("hello"))
}

func TestVault_CrossOwnerFails(t *testing.T) {
	v := newTestVault(t)

	ct, err := v.Encrypt([]byte("secret"), "owner-1")
	require.NoError(t, err)

	got, err := v.Decrypt(ct, "owner-2")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, common.ErrCredential)
}

func TestVault_FreshNonce(t *testing.T) {
	v := newTestVault(t)

	a, err := v.Encrypt([]byte("same"), "owner")
	require.NoError(t, err)
	b, err := v.Encrypt([]byte("same"), "owner")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	pa, err := v.Decrypt(a, "owner")
	require.NoError(t, err)
	pb, err := v.Decrypt(b, "owner")
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestVault_DecryptFailures(t *testing.T) {
	v := newTestVault(t)

	good, err := v.Encrypt([]byte("payload"), "owner")
	require.NoError(t, err)
	raw, _ := base64.StdEncoding.DecodeString(good)

	tampered := append([]byte(nil), raw...)
	tampered[len(tampered)-1] ^= 0xff

	tests := []struct {
		name string
		in   string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"empty", ""},
		{"shorter than nonce and tag", base64.StdEncoding.EncodeToString(raw[:nonceSize+tagSize-1])},
		{"tampered ciphertext", base64.StdEncoding.EncodeToString(tampered)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Decrypt(tt.in, "owner")
			assert.Nil(t, got)
			assert.ErrorIs(t, err, common.ErrCredential)
		})
	}
}
