package aiquota

import "errors"

// ErrQuotaExhausted is returned when a donor has no AI suggestions remaining
// for the current month.
var ErrQuotaExhausted = errors.New("monthly suggestion quota exhausted")

// DefaultQuota is the number of AI priority suggestions granted per month.
const DefaultQuota = 50
