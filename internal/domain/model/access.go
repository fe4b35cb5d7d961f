package model

// Decision is the outcome of an entitlement evaluation.
type Decision int

const (
	Allowed Decision = iota
	RequiresVerification
	RequiresPremium
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case RequiresVerification:
		return "requires_verification"
	case RequiresPremium:
		return "requires_premium"
	default:
		return "unknown"
	}
}
