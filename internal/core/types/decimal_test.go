package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2_HalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"1.005":   "1.01",
		"1.004":   "1",
		"2.675":   "2.68",
		"-1.005":  "-1.01",
		"-2.5":    "-2.5",
		"10.1250": "10.13",
	}
	for in, want := range cases {
		got := Round2(MustMoney(in))
		assert.True(t, got.Equal(MustMoney(want)), "round(%s) = %s, want %s", in, got, want)
	}
}

func TestPercent(t *testing.T) {
	got := Percent(MustMoney("5000"), MustMoney("10"))
	assert.True(t, got.Equal(MustMoney("500")))
}

func TestFloat(t *testing.T) {
	assert.Equal(t, 1234.57, Float(MustMoney("1234.565")))
	assert.Nil(t, FloatPtr(nil))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), d)

	ts, err := ParseDate("2026-03-14T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, ts.Hour())

	_, err = ParseDate("14/03/2026")
	assert.Error(t, err)

	empty := ""
	p, err := ParseDatePtr(&empty)
	require.NoError(t, err)
	assert.Nil(t, p)
}
