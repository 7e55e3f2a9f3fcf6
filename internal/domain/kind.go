package domain

// Kind identifies a category of tracked entity.
type Kind string

const (
	KindWallet Kind = "wallet"
	KindCoin   Kind = "memecoin"
	KindNFT    Kind = "nft"
)

// Kinds lists every entity kind in dispatch order.
var Kinds = []Kind{KindWallet, KindCoin, KindNFT}

// String returns the string representation of Kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known value.
func (k Kind) IsValid() bool {
	return k == KindWallet || k == KindCoin || k == KindNFT
}

// DataEvent is the outbound event name carrying an initial snapshot.
func (k Kind) DataEvent() string {
	return string(k) + "_data"
}

// UpdateEvent is the outbound event name carrying an incremental update.
func (k Kind) UpdateEvent() string {
	return string(k) + "_update"
}

// ParseKind converts a wire name into a Kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	return k, k.IsValid()
}
