// Package auth verifica mensagens assinadas com personal_sign (EIP-191).
package auth

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrUnauthorized cobre assinatura inválida ou de outro endereço
	ErrUnauthorized = errors.New("invalid signature")
	// ErrBadPayload indica assinatura válida sobre um JSON que não decodifica
	ErrBadPayload = errors.New("bad signed payload")
)

// SignedMessage é o corpo das rotas de escrita: Data é o JSON assinado por Address
type SignedMessage struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Data      string `json:"data"`
}

// Verify recupera o signatário de Data e compara com Address
func Verify(m SignedMessage) error {
	if !common.IsHexAddress(m.Address) {
		return fmt.Errorf("%w: bad address", ErrUnauthorized)
	}
	sig, err := hexutil.Decode(m.Signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: malformed signature", ErrUnauthorized)
	}
	// carteiras devolvem v em 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(m.Data)), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if signer := crypto.PubkeyToAddress(*pub); !strings.EqualFold(signer.Hex(), m.Address) {
		return ErrUnauthorized
	}
	return nil
}

// Signer é Address no formato checksum; só faz sentido depois de Verify
func (m SignedMessage) Signer() string {
	return NormalizeAddress(m.Address)
}

// NormalizeAddress põe um endereço hex no formato checksum (EIP-55)
func NormalizeAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// Open verifica a assinatura e decodifica Data em v
func Open(m SignedMessage, v any) error {
	if err := Verify(m); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(m.Data), v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

// Sign assina data como uma carteira faria; usado por clientes e testes
func Sign(key *ecdsa.PrivateKey, data any) (SignedMessage, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return SignedMessage{}, err
	}
	sig, err := crypto.Sign(accounts.TextHash(b), key)
	if err != nil {
		return SignedMessage{}, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return SignedMessage{
		Address:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Signature: hexutil.Encode(sig),
		Data:      string(b),
	}, nil
}
