package postgres

import (
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/tradepost/tradepost/errs"
	"github.com/vmihailenco/msgpack/v5"
)

const defaultPageSize = 25

// Cursor is the opaque pagination token for listings keyed by xid. Message
// polling does not use it; the ledger cursor is the plain message id.
type Cursor struct {
	ID string `msgpack:"i"`
}

func EncodeCursor(c Cursor) (string, error) {
	b, err := msgpack.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("msgpack marshal cursor: %w", err)
	}

	return base58.Encode(b), nil
}

func DecodeCursor(s string) (Cursor, error) {
	var c Cursor

	b := base58.Decode(s)
	if err := msgpack.Unmarshal(b, &c); err != nil {
		return c, errs.NewInvalidArgumentError("cursor", "invalid cursor")
	}

	return c, nil
}
