package gst

import (
	"errors"
	"fmt"
)

const (
	// DefaultIntraRate is the combined CGST+SGST percentage, split evenly.
	DefaultIntraRate = 18.0
	// DefaultInterRate is the IGST percentage.
	DefaultInterRate = 18.0
)

// ErrNegativeRate is reported by Rates.Validate.
var ErrNegativeRate = errors.New("gst rate must not be negative")

// Rates holds the configured GST percentages.
type Rates struct {
	IntraRate float64
	InterRate float64
}

// DefaultRates returns 9%+9% intra-state and 18% inter-state.
func DefaultRates() Rates {
	return Rates{IntraRate: DefaultIntraRate, InterRate: DefaultInterRate}
}

// Validate guards configuration input. The arithmetic itself never rejects a rate.
func (r Rates) Validate() error {
	if r.IntraRate < 0 {
		return fmt.Errorf("intra rate %v: %w", r.IntraRate, ErrNegativeRate)
	}
	if r.InterRate < 0 {
		return fmt.Errorf("inter rate %v: %w", r.InterRate, ErrNegativeRate)
	}
	return nil
}

// Percentages are the per-line GST percentages. Once written onto a line item they are
// treated as caller-supplied facts; nothing downstream re-derives them from jurisdiction.
type Percentages struct {
	CGST float64 `json:"cgstPercent"`
	SGST float64 `json:"sgstPercent"`
	IGST float64 `json:"igstPercent"`
}

// Amounts is the tax owed for each GST component.
type Amounts struct {
	CGST  float64
	SGST  float64
	IGST  float64
	Total float64
}

// Amounts applies the percentages to a taxable base. Total is the plain sum of the parts.
func (p Percentages) Amounts(taxable float64) Amounts {
	cgst := taxable * p.CGST / 100
	sgst := taxable * p.SGST / 100
	igst := taxable * p.IGST / 100
	return Amounts{
		CGST:  cgst,
		SGST:  sgst,
		IGST:  igst,
		Total: cgst + sgst + igst,
	}
}

// Result is a standalone GST breakdown for one taxable amount.
type Result struct {
	Regime         Regime  `json:"regime"`
	CGSTPercent    float64 `json:"cgstPercent"`
	SGSTPercent    float64 `json:"sgstPercent"`
	IGSTPercent    float64 `json:"igstPercent"`
	CGSTAmount     float64 `json:"cgstAmount"`
	SGSTAmount     float64 `json:"sgstAmount"`
	IGSTAmount     float64 `json:"igstAmount"`
	TotalGSTAmount float64 `json:"totalGstAmount"`
}

// Calculator turns a regime into percentages and amounts using configured rates.
type Calculator struct {
	rates Rates
}

// NewCalculator returns a calculator bound to the supplied rates.
func NewCalculator(rates Rates) Calculator {
	return Calculator{rates: rates}
}

// Rates returns the configured rates.
func (c Calculator) Rates() Rates { return c.rates }

// Percentages returns the percentages for a regime. Unknown regimes are inter-state.
func (c Calculator) Percentages(regime Regime) Percentages {
	if regime == RegimeIntra {
		half := c.rates.IntraRate / 2
		return Percentages{CGST: half, SGST: half}
	}
	return Percentages{IGST: c.rates.InterRate}
}

// Calculate returns the GST breakdown for taxableAmount. Negative amounts propagate proportionally.
func (c Calculator) Calculate(taxableAmount float64, regime Regime) Result {
	if regime != RegimeIntra {
		regime = RegimeInter
	}
	pct := c.Percentages(regime)
	amounts := pct.Amounts(taxableAmount)
	return Result{
		Regime:         regime,
		CGSTPercent:    pct.CGST,
		SGSTPercent:    pct.SGST,
		IGSTPercent:    pct.IGST,
		CGSTAmount:     amounts.CGST,
		SGSTAmount:     amounts.SGST,
		IGSTAmount:     amounts.IGST,
		TotalGSTAmount: amounts.Total,
	}
}
