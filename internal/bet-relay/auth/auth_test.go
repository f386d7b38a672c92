package auth_test

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/ethbet-relay/internal/bet-relay/auth"
)

type payload struct {
	ID           int64  `json:"id"`
	GasPriceType string `json:"gasPriceType"`
}

func TestSignAndOpen(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg, err := auth.Sign(key, payload{ID: 36, GasPriceType: "low"})
	require.NoError(t, err)

	var got payload
	require.NoError(t, auth.Open(msg, &got))
	assert.Equal(t, payload{ID: 36, GasPriceType: "low"}, got)
}

func TestVerify_Rejects(t *testing.T) {
	key, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	msg, err := auth.Sign(key, payload{ID: 1})
	require.NoError(t, err)

	tampered := msg
	tampered.Data = `{"id":2,"gasPriceType":""}`
	assert.ErrorIs(t, auth.Verify(tampered), auth.ErrUnauthorized)

	wrongAddr := msg
	wrongAddr.Address = crypto.PubkeyToAddress(other.PublicKey).Hex()
	assert.ErrorIs(t, auth.Verify(wrongAddr), auth.ErrUnauthorized)

	badSig := msg
	badSig.Signature = "0x1234"
	assert.ErrorIs(t, auth.Verify(badSig), auth.ErrUnauthorized)

	badAddr := msg
	badAddr.Address = "alice"
	assert.ErrorIs(t, auth.Verify(badAddr), auth.ErrUnauthorized)
}

func TestVerify_AddressCaseInsensitive(t *testing.T) {
	key, _ := crypto.GenerateKey()
	msg, err := auth.Sign(key, payload{ID: 1})
	require.NoError(t, err)

	checksum := msg.Address
	msg.Address = strings.ToLower(msg.Address)
	assert.NoError(t, auth.Verify(msg))
	assert.Equal(t, checksum, msg.Signer())
	assert.Equal(t, checksum, auth.NormalizeAddress(strings.ToUpper(checksum[2:])))
}
