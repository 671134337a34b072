package ledger

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Account is the state held at one ledger address.
type Account struct {
	Lamports uint64           `json:"lamports"`
	Owner    solana.PublicKey `json:"owner"`
	Data     []byte           `json:"data"`
}

// IsEmpty reports whether the account holds nothing and belongs to nobody,
// which is how a never-written address reads.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0 && a.Owner.Equals(solana.SystemProgramID)
}

func (a *Account) clone() *Account {
	return &Account{
		Lamports: a.Lamports,
		Owner:    a.Owner,
		Data:     bytes.Clone(a.Data),
	}
}

func emptyAccount() *Account {
	return &Account{Owner: solana.SystemProgramID}
}

// MarshalWithEncoder encodes the account in borsh layout.
func (a Account) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.Encode(a.Lamports); err != nil {
		return err
	}
	if err := encoder.Encode(a.Owner); err != nil {
		return err
	}
	return encoder.Encode(a.Data)
}

// UnmarshalWithDecoder decodes the borsh layout written by MarshalWithEncoder.
func (a *Account) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	if err := decoder.Decode(&a.Lamports); err != nil {
		return err
	}
	if err := decoder.Decode(&a.Owner); err != nil {
		return err
	}
	return decoder.Decode(&a.Data)
}

func encodeAccount(a *Account) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := a.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, fmt.Errorf("failed to encode account: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeAccount(data []byte) (*Account, error) {
	var a Account
	if err := a.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return &a, nil
}

// AccountInfo is an account as seen by a program during one instruction.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	*Account
}
