package core

import (
	"fmt"
	"math"
	"math/big"
)

// AssetValueKind tags which representation an AssetValue holds: spec.md §3
// defines an asset's value as one of Quantity(u32) | BigQuantity(u128) |
// Fixed(decimal) | Store(metadata), the same closed tagged-variant shape
// Instruction uses for its own fields (see InstructionKind).
type AssetValueKind uint8

const (
	AssetValueQuantity AssetValueKind = iota
	AssetValueBigQuantity
	AssetValueFixed
	AssetValueStore
)

func (k AssetValueKind) String() string {
	switch k {
	case AssetValueQuantity:
		return "Quantity"
	case AssetValueBigQuantity:
		return "BigQuantity"
	case AssetValueFixed:
		return "Fixed"
	case AssetValueStore:
		return "Store"
	default:
		return "Unknown"
	}
}

// FixedScale is the number of decimal digits a Fixed value carries. Fixed
// stores value*FixedScale as an int64, matching original_source's
// iroha_data_model::Fixed (9 digits of precision).
const FixedScale = 1_000_000_000

// MaxBigQuantity is the largest value a BigQuantity may hold, 2^128-1.
var MaxBigQuantity = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// AssetValue is the tagged union an asset balance and a Mint/Burn/Transfer
// amount are expressed in. Exactly one of Quantity/Big/Fixed/Store is
// meaningful, selected by Kind.
type AssetValue struct {
	Kind     AssetValueKind
	Quantity uint32
	Big      *big.Int
	Fixed    int64 // scaled by FixedScale; always non-negative
	Store    map[string][]byte
}

// NewQuantity builds a Quantity-kind AssetValue.
func NewQuantity(v uint32) AssetValue { return AssetValue{Kind: AssetValueQuantity, Quantity: v} }

// NewBigQuantity builds a BigQuantity-kind AssetValue.
func NewBigQuantity(v *big.Int) AssetValue {
	if v == nil {
		v = big.NewInt(0)
	}
	return AssetValue{Kind: AssetValueBigQuantity, Big: v}
}

// NewFixed builds a Fixed-kind AssetValue from a value already scaled by FixedScale.
func NewFixed(scaled int64) AssetValue { return AssetValue{Kind: AssetValueFixed, Fixed: scaled} }

// NewStore builds a Store-kind AssetValue.
func NewStore(m map[string][]byte) AssetValue {
	if m == nil {
		m = map[string][]byte{}
	}
	return AssetValue{Kind: AssetValueStore, Store: m}
}

// IsZero reports whether the value represents a zero amount. Store values
// are never zero: they have no numeric magnitude to test.
func (v AssetValue) IsZero() bool {
	switch v.Kind {
	case AssetValueQuantity:
		return v.Quantity == 0
	case AssetValueBigQuantity:
		return v.Big == nil || v.Big.Sign() == 0
	case AssetValueFixed:
		return v.Fixed == 0
	default:
		return false
	}
}

var (
	// ErrAssetValueKindMismatch is returned when Add/Sub operate on values of different kinds.
	ErrAssetValueKindMismatch = fmt.Errorf("core: asset value kind mismatch")
	// ErrQuantityOverflow is returned when Add would exceed the representable
	// range of the value's kind (spec.md §8, "Quantity overflow fails").
	ErrQuantityOverflow = fmt.Errorf("core: asset value overflow")
	// ErrNotAdditive is returned when Add/Sub are called on a Store value.
	ErrNotAdditive = fmt.Errorf("core: store asset values are not additive")
)

// Add returns v+other, failing with ErrQuantityOverflow rather than
// wrapping when the sum exceeds the kind's range (spec.md §8's
// mint-overflow-fails contract).
func (v AssetValue) Add(other AssetValue) (AssetValue, error) {
	if v.Kind != other.Kind {
		return AssetValue{}, ErrAssetValueKindMismatch
	}
	switch v.Kind {
	case AssetValueQuantity:
		sum := uint64(v.Quantity) + uint64(other.Quantity)
		if sum > math.MaxUint32 {
			return AssetValue{}, ErrQuantityOverflow
		}
		return NewQuantity(uint32(sum)), nil
	case AssetValueBigQuantity:
		sum := new(big.Int).Add(bigOf(v), bigOf(other))
		if sum.Cmp(MaxBigQuantity) > 0 {
			return AssetValue{}, ErrQuantityOverflow
		}
		return NewBigQuantity(sum), nil
	case AssetValueFixed:
		sum := v.Fixed + other.Fixed
		if sum < v.Fixed {
			return AssetValue{}, ErrQuantityOverflow
		}
		return NewFixed(sum), nil
	default:
		return AssetValue{}, ErrNotAdditive
	}
}

// Sub returns v-other, saturating at zero instead of failing
// (spec.md §3's "saturates on burn-below-zero" contract).
func (v AssetValue) Sub(other AssetValue) (AssetValue, error) {
	if v.Kind != other.Kind {
		return AssetValue{}, ErrAssetValueKindMismatch
	}
	switch v.Kind {
	case AssetValueQuantity:
		if other.Quantity >= v.Quantity {
			return NewQuantity(0), nil
		}
		return NewQuantity(v.Quantity - other.Quantity), nil
	case AssetValueBigQuantity:
		diff := new(big.Int).Sub(bigOf(v), bigOf(other))
		if diff.Sign() < 0 {
			return NewBigQuantity(big.NewInt(0)), nil
		}
		return NewBigQuantity(diff), nil
	case AssetValueFixed:
		if other.Fixed >= v.Fixed {
			return NewFixed(0), nil
		}
		return NewFixed(v.Fixed - other.Fixed), nil
	default:
		return AssetValue{}, ErrNotAdditive
	}
}

// Less orders two same-kind AssetValues; used by funds checks in
// internal/queue and internal/executor. Store values never compare less.
func (v AssetValue) Less(other AssetValue) bool {
	switch v.Kind {
	case AssetValueQuantity:
		return v.Quantity < other.Quantity
	case AssetValueBigQuantity:
		return bigOf(v).Cmp(bigOf(other)) < 0
	case AssetValueFixed:
		return v.Fixed < other.Fixed
	default:
		return false
	}
}

func bigOf(v AssetValue) *big.Int {
	if v.Big == nil {
		return big.NewInt(0)
	}
	return v.Big
}
