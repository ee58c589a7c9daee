package gst

import "strings"

// DefaultHomeState is the jurisdiction treated as "home" when none is configured.
const DefaultHomeState = "maharashtra"

// Regime identifies which GST split applies to a transaction.
type Regime string

const (
	// RegimeIntra applies when billing and shipping both sit in the home state (CGST + SGST).
	RegimeIntra Regime = "INTRA"
	// RegimeInter applies to every other pair (IGST).
	RegimeInter Regime = "INTER"
)

// Classifier decides the regime for a billing/shipping pair against a home state.
type Classifier struct {
	home string
}

// NewClassifier builds a classifier for the provided home state.
func NewClassifier(homeState string) Classifier {
	home := normalizeState(homeState)
	if home == "" {
		home = DefaultHomeState
	}
	return Classifier{home: home}
}

// HomeState returns the normalised home jurisdiction.
func (c Classifier) HomeState() string {
	if c.home == "" {
		return DefaultHomeState
	}
	return c.home
}

// DetermineRegime returns RegimeIntra only when both states normalise to the home state.
// A nil state on either side yields RegimeInter.
func (c Classifier) DetermineRegime(billingState, shippingState *string) Regime {
	if billingState == nil || shippingState == nil {
		return RegimeInter
	}
	home := c.HomeState()
	if normalizeState(*billingState) == home && normalizeState(*shippingState) == home {
		return RegimeIntra
	}
	return RegimeInter
}

// DetermineRegimeStrings is DetermineRegime for callers holding plain strings; empty means missing.
func (c Classifier) DetermineRegimeStrings(billingState, shippingState string) Regime {
	return c.DetermineRegime(optional(billingState), optional(shippingState))
}

// ParseRegime maps a wire value onto a Regime. Anything other than INTRA is inter-state.
func ParseRegime(value string) Regime {
	if strings.EqualFold(strings.TrimSpace(value), string(RegimeIntra)) {
		return RegimeIntra
	}
	return RegimeInter
}

func normalizeState(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func optional(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
