package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmountForDuration(t *testing.T) {
	cases := []struct {
		minutes int
		want    float64
	}{
		{60, 5.00},
		{30, 2.50},
		{90, 7.50},
		{15, 1.25},
		{45, 3.75},
		{480, 40.00},
		{17, 1.42}, // 5 * 17/60 = 1.41666 -> 1.42
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, AmountForDuration(c.minutes), 0.001, "minutes=%d", c.minutes)
	}
}
