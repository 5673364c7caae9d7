package domain

// CanonicalStatus is the closed internal classification of the provider's
// open-ended status vocabulary.
type CanonicalStatus string

const (
	CanonicalPaid    CanonicalStatus = "PAID"
	CanonicalFailed  CanonicalStatus = "FAILED"
	CanonicalExpired CanonicalStatus = "EXPIRED"
	CanonicalPending CanonicalStatus = "PENDING"
)

// IsTerminal returns true if the canonical status ends a payment's lifecycle.
func (s CanonicalStatus) IsTerminal() bool {
	return s == CanonicalPaid || s == CanonicalFailed || s == CanonicalExpired
}

// PaymentStatus converts the canonical classification into the payment state
// it drives. CanonicalPending maps to PENDING and never finalizes anything.
func (s CanonicalStatus) PaymentStatus() PaymentStatus {
	switch s {
	case CanonicalPaid:
		return PaymentStatusSuccess
	case CanonicalFailed:
		return PaymentStatusFailed
	case CanonicalExpired:
		return PaymentStatusExpired
	default:
		return PaymentStatusPending
	}
}
