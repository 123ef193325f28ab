// Package utils holds small helpers shared across layers.
package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewBookingCode returns a short human-facing booking reference in the form
// PARK-YYYYMMDD-XXXXXX.  The random part is taken from a fresh UUID, so the
// code is distinct from the reservation id while staying readable on a
// phone call or a printed ticket.
func NewBookingCode(now time.Time) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("PARK-%s-%s", now.Format("20060102"), random)
}
