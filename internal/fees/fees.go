// Package fees quotes the marketplace's bid fees. Pure functions so the
// same numbers serve initiation-time quoting and later audits.
package fees

import "fmt"

type Type string

const (
	Hide    Type = "hide"
	Feature Type = "feature"
)

const (
	minFee = 3.0
	maxFee = 8.0

	hideRate    = 0.05
	featureRate = 0.06
)

// Compute returns the fee for hiding or featuring a bid on a job with the
// given salary. The percentage is clamped to [3, 8].
func Compute(jobSalary float64, feeType Type) (float64, error) {
	var fee float64
	switch feeType {
	case Hide:
		fee = jobSalary * hideRate
	case Feature:
		fee = jobSalary * featureRate
	default:
		return 0, fmt.Errorf("unknown fee type %q", feeType)
	}

	if fee < minFee {
		return minFee, nil
	}
	if fee > maxFee {
		return maxFee, nil
	}
	return fee, nil
}
