package lnchannel

import "github.com/22388o/lightning-kmp/lnwire"

// SatPerKWeight represents a fee rate in satoshis per kilo-weight-unit,
// the unit feerates are expressed in throughout BOLT #2 and BOLT #3.
type SatPerKWeight int64

// FeeForWeight returns the fee due for a transaction (or partial
// transaction) of the given weight at this fee rate.
func (f SatPerKWeight) FeeForWeight(weight int64) int64 {
	return int64(f) * weight / 1000
}

// MulF64 multiplies this fee rate by a floating point value, used by
// feerate ramp-up/ramp-down logic.
func (f SatPerKWeight) MulF64(x float64) SatPerKWeight {
	return SatPerKWeight(float64(f) * x)
}

const (
	// WitnessScaleFactor determines the level of "discount" witness
	// data receives compared to "base" data. A scale factor of four
	// implies that witness data is 1/4 as cheap as regular non-witness
	// data. This is the official value defined by BIP-141.
	WitnessScaleFactor = 4

	// The weight(cost), which is different from the !size! (see
	// BIP-141), is calculated as:
	//   Weight = 4 * BaseSize + WitnessSize (weight).
	// BaseSize   - size of the transaction without witness data (bytes).
	// WitnessSize - witness size (bytes).
	// Weight     - the metric for determining the cost of the
	// transaction.

	// P2WSHSize is the size, in bytes, of a P2WSH output script:
	//	- OP_0: 1 byte
	//	- OP_DATA: 1 byte (WitnessScriptSHA256 length)
	//	- WitnessScriptSHA256: 32 bytes
	P2WSHSize = 1 + 1 + 32

	// P2WPKHSize is the size, in bytes, of a P2WPKH output script:
	//	- OP_0: 1 byte
	//	- OP_DATA: 1 byte (PublicKeyHASH160 length)
	//	- PublicKeyHASH160: 20 bytes
	P2WPKHSize = 1 + 1 + 20

	// MultiSigSize is the size, in bytes, of the 2-of-2 multisig funding
	// witness script:
	//	- OP_2: 1 byte
	//	- OP_DATA: 1 byte (pubKeyAlice length)
	//	- pubKeyAlice: 33 bytes
	//	- OP_DATA: 1 byte (pubKeyBob length)
	//	- pubKeyBob: 33 bytes
	//	- OP_2: 1 byte
	//	- OP_CHECKMULTISIG: 1 byte
	MultiSigSize = 1 + 1 + 33 + 1 + 33 + 1 + 1

	// WitnessSize is the size, in bytes, of the witness satisfying the
	// 2-of-2 funding multisig script:
	//	- NumberOfWitnessElements: 1 byte
	//	- NilLength: 1 byte
	//	- sigAliceLength: 1 byte
	//	- sigAlice: 73 bytes
	//	- sigBobLength: 1 byte
	//	- sigBob: 73 bytes
	//	- WitnessScriptLength: 1 byte
	//	- WitnessScript (MultiSig)
	WitnessSize = 1 + 1 + 1 + 73 + 1 + 73 + 1 + MultiSigSize

	// FundingInputSize is the size, in bytes, of the funding outpoint as
	// it appears in the commitment transaction's single input:
	//	- PreviousOutPoint: 36 bytes (Hash 32 + Index 4)
	//	- ScriptSigLength: 1 byte
	//	- ScriptSig: 0 bytes
	//	- Sequence: 4 bytes
	FundingInputSize = 32 + 4 + 1 + 4

	// CommitmentDelayOutput is the size, in bytes, of the to-local
	// output, which pays to a P2WSH revocation/delay script:
	//	- Value: 8 bytes
	//	- VarInt: 1 byte (PkScript length)
	//	- PkScript (P2WSH)
	CommitmentDelayOutput = 8 + 1 + P2WSHSize

	// CommitmentKeyHashOutput is the size, in bytes, of the to-remote
	// output, which pays directly to a P2WPKH:
	//	- Value: 8 bytes
	//	- VarInt: 1 byte (PkScript length)
	//	- PkScript (P2WPKH)
	CommitmentKeyHashOutput = 8 + 1 + P2WPKHSize

	// HTLCSize is the size, in bytes, of a single HTLC output, which
	// pays to a P2WSH HTLC script:
	//	- Value: 8 bytes
	//	- VarInt: 1 byte (PkScript length)
	//	- PkScript (P2WSH)
	HTLCSize = 8 + 1 + P2WSHSize

	// WitnessHeaderSize is the size, in bytes, of the segwit marker and
	// flag carried by every witness transaction.
	WitnessHeaderSize = 1 + 1

	// BaseCommitmentTxSize is the size, in bytes, of a commitment
	// transaction carrying zero HTLC outputs, excluding witness data:
	//	- Version: 4 bytes
	//	- CountTxIn: 1 byte
	//	- TxIn: FundingInputSize bytes
	//	- CountTxOut: 1 byte
	//	- TxOut: CommitmentDelayOutput + CommitmentKeyHashOutput bytes
	//	- LockTime: 4 bytes
	BaseCommitmentTxSize = 4 + 1 + FundingInputSize + 1 +
		CommitmentDelayOutput + CommitmentKeyHashOutput + 4

	// BaseCommitmentTxCost is the weight, in weight units, of a
	// commitment transaction carrying zero HTLC outputs, excluding the
	// weight of the funding multisig witness.
	BaseCommitmentTxCost = WitnessScaleFactor * BaseCommitmentTxSize

	// WitnessCommitmentTxCost is the weight, in weight units, of the
	// funding multisig witness that spends the channel's commitment
	// input.
	WitnessCommitmentTxCost = WitnessHeaderSize + WitnessSize

	// HTLCCost is the weight, in weight units, contributed by a single
	// HTLC output.
	HTLCCost = WitnessScaleFactor * HTLCSize

	// MaxHTLCNumber is the maximum number of HTLCs which can be included
	// in a commitment transaction. This number was derived by Rusty
	// Russell in BOLT #5, based on the requirement that all HTLCs be
	// sweepable within a single penalty transaction.
	MaxHTLCNumber = 1253
)

// estimateCommitTxWeight estimates a commitment transaction's weight given
// the number of HTLCs it carries. When prediction is true, the weight is
// calculated as if one more HTLC were about to be added, which callers use
// to verify that the funder can still afford the next HTLC before sending
// it.
func estimateCommitTxWeight(count int, prediction bool) int64 {
	if prediction {
		count++
	}

	htlcWeight := int64(count * HTLCCost)
	baseWeight := int64(BaseCommitmentTxCost)
	witnessWeight := int64(WitnessCommitmentTxCost)

	return htlcWeight + baseWeight + witnessWeight
}

// commitTxFee returns the fee, in millisatoshis, required for a commitment
// transaction carrying numHtlcs HTLCs at the given feerate. When
// prediction is true, the fee is computed as if one more HTLC were about
// to be added.
func commitTxFee(feePerKw SatPerKWeight, numHtlcs int, prediction bool) lnwire.MilliSatoshi {
	weight := estimateCommitTxWeight(numHtlcs, prediction)
	fee := feePerKw.FeeForWeight(weight)

	return lnwire.MilliSatoshi(fee * 1000)
}
