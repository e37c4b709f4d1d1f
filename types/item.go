package types

import "time"

type ItemStatus string

const (
	ItemStatusActive  ItemStatus = "active"
	ItemStatusPending ItemStatus = "pending"
	ItemStatusSold    ItemStatus = "sold"
)

func (s ItemStatus) String() string {
	return string(s)
}

// Item is owned by the catalog. The negotiation engines only read the
// seller identity and write the availability status.
type Item struct {
	ID        string     `db:"id"`
	SellerID  string     `db:"seller_id"`
	Title     string     `db:"title"`
	Price     int64      `db:"price"`
	Status    ItemStatus `db:"status"`
	CreatedAt time.Time  `db:"created_at"`
}
