package repchain

import "fmt"

// Domain separators of the 8004 protocol, version 1. The byte values are
// fixed by the on-chain program; any deviation produces digests the chain
// will not recognise.
const (
	// DomainFeedbackChain is folded into every feedback-chain digest.
	DomainFeedbackChain = "8004_FEEDBACK_V1"
	// DomainResponseChain is folded into every response-chain digest.
	DomainResponseChain = "8004_RESPONSE_V1"
	// DomainRevokeChain is folded into every revoke-chain digest. Note the
	// 14-byte length; the other two chain domains are 16 bytes.
	DomainRevokeChain = "8004_REVOKE_V1"

	// DomainSeal prefixes the seal-hash preimage.
	DomainSeal = "8004_SEAL_V1____"
	// DomainFeedbackLeaf prefixes feedback leaf preimages.
	DomainFeedbackLeaf = "8004_LEAF_V1____"
	// DomainResponseLeaf prefixes response leaf preimages.
	DomainResponseLeaf = "8004_RSP_LEAF_V1"
	// DomainRevokeLeaf prefixes revoke leaf preimages.
	DomainRevokeLeaf = "8004_RVK_LEAF_V1"
)

// ChainKind identifies one of the three event chains kept per asset. A kind
// binds a chain domain and a leaf domain together, so callers select the
// chain once and cannot pair a leaf encoding with the wrong chain domain.
type ChainKind uint8

const (
	// ChainFeedback is the chain of feedback events.
	ChainFeedback ChainKind = iota
	// ChainResponse is the chain of responses to feedback.
	ChainResponse
	// ChainRevoke is the chain of feedback revocations.
	ChainRevoke
)

// Kinds returns the three chain kinds in canonical order.
func Kinds() []ChainKind {
	return []ChainKind{ChainFeedback, ChainResponse, ChainRevoke}
}

// Valid reports whether k is one of the three defined chain kinds.
func (k ChainKind) Valid() bool { return k <= ChainRevoke }

// Domain returns the chain domain separator folded into every digest of
// this chain. It panics on an undefined kind: a digest computed under a
// guessed domain would be silently wrong, which is worse than a crash.
func (k ChainKind) Domain() []byte {
	switch k {
	case ChainFeedback:
		return []byte(DomainFeedbackChain)
	case ChainResponse:
		return []byte(DomainResponseChain)
	case ChainRevoke:
		return []byte(DomainRevokeChain)
	}
	panic(fmt.Sprintf("repchain: undefined chain kind %d", uint8(k)))
}

// LeafDomain returns the leaf domain separator for this chain's events.
// It panics on an undefined kind, like Domain.
func (k ChainKind) LeafDomain() []byte {
	switch k {
	case ChainFeedback:
		return []byte(DomainFeedbackLeaf)
	case ChainResponse:
		return []byte(DomainResponseLeaf)
	case ChainRevoke:
		return []byte(DomainRevokeLeaf)
	}
	panic(fmt.Sprintf("repchain: undefined chain kind %d", uint8(k)))
}

// String implements fmt.Stringer.
func (k ChainKind) String() string {
	switch k {
	case ChainFeedback:
		return "feedback"
	case ChainResponse:
		return "response"
	case ChainRevoke:
		return "revoke"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler, so a ChainKind renders as
// its name in JSON documents.
func (k ChainKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("repchain: undefined chain kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ChainKind) UnmarshalText(text []byte) error {
	kind, err := ParseChainKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseChainKind converts a chain name ("feedback", "response" or "revoke")
// into its ChainKind.
func ParseChainKind(s string) (ChainKind, error) {
	switch s {
	case "feedback":
		return ChainFeedback, nil
	case "response":
		return ChainResponse, nil
	case "revoke":
		return ChainRevoke, nil
	}
	return 0, fmt.Errorf("repchain: unknown chain kind %q", s)
}
