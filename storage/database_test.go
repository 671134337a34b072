package storage_test

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holpsBot/proof-of-wake/storage"
)

func TestWalletStore(t *testing.T) {
	s, err := storage.Connect("", nil)
	require.NoError(t, err)
	defer s.Close()

	alice := solana.NewWallet().PrivateKey
	bob := solana.NewWallet().PrivateKey
	require.NoError(t, s.SaveWallet("alice", alice))
	require.NoError(t, s.SaveWallet("bob", bob))

	require.ErrorIs(t, s.SaveWallet("alice", bob), storage.ErrWalletExists)
	require.ErrorIs(t, s.SaveWallet("  ", bob), storage.ErrInvalidName)

	names, err := s.GetAllWalletNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)

	w, err := s.GetWallet("alice")
	require.NoError(t, err)
	key, err := w.Key()
	require.NoError(t, err)
	assert.Equal(t, alice.PublicKey(), key.PublicKey())

	require.NoError(t, s.DeleteWallet("alice"))
	_, err = s.GetWallet("alice")
	require.ErrorIs(t, err, storage.ErrWalletNotFound)
	require.ErrorIs(t, s.DeleteWallet("alice"), storage.ErrWalletNotFound)
}

func TestWalletStorePersists(t *testing.T) {
	dir := t.TempDir()
	key := solana.NewWallet().PrivateKey

	s, err := storage.Connect(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveWallet("main", key))
	require.NoError(t, s.Close())

	s, err = storage.Connect(dir, nil)
	require.NoError(t, err)
	defer s.Close()
	w, err := s.GetWallet("main")
	require.NoError(t, err)
	assert.Equal(t, key.String(), w.PrivateKey)
	assert.False(t, w.CreatedAt.IsZero())
}
