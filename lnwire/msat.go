package lnwire

import "fmt"

// mSatScale is the number of millisatoshis in a single satoshi.
const mSatScale uint64 = 1000

// MaxMilliSatoshi is the maximum number of millisatoshis that can be
// represented, equivalent to the 21 million BTC cap expressed in msat.
const MaxMilliSatoshi = MilliSatoshi(21_000_000 * 100_000_000 * mSatScale)

// MilliSatoshi is a thousandth of a satoshi, the unit the commitment ledger
// and every HTLC-bearing wire message uses for amounts.
type MilliSatoshi uint64

// NewMSatFromSatoshis creates a MilliSatoshi from a whole satoshi amount.
func NewMSatFromSatoshis(sat int64) MilliSatoshi {
	return MilliSatoshi(sat * int64(mSatScale))
}

// ToSatoshis truncates a MilliSatoshi amount down to whole satoshis.
func (m MilliSatoshi) ToSatoshis() int64 {
	return int64(m / MilliSatoshi(mSatScale))
}

// String returns the millisatoshi amount as a human-readable string.
func (m MilliSatoshi) String() string {
	return fmt.Sprintf("%d mSAT", uint64(m))
}
