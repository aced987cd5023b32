package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-analyzer/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input  string
		market model.Market
		code   string
	}{
		{"HK.00700", model.MarketHK, "00700"},
		{"US.NVDA", model.MarketUS, "NVDA"},
		{"us.nvda", model.MarketUS, "NVDA"},
		{"A.600519", model.MarketA, "600519"},
		{"SH.600519", model.MarketA, "600519"},
		{"SZ.000001", model.MarketA, "000001"},
		{"CN.300750", model.MarketA, "300750"},
		// bare codes with inference
		{"00700", model.MarketHK, "00700"},
		{"600519", model.MarketA, "600519"},
		{"000001", model.MarketA, "000001"},
		{"NVDA", model.MarketUS, "NVDA"},
		{"BRK.B", model.MarketUS, "BRK.B"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sym, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.market, sym.Market)
			assert.Equal(t, tt.code, sym.Code)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"", "  ", "HK.", "??", "12"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestParseAll(t *testing.T) {
	syms, err := ParseAll([]string{"HK.00700", "SH.600519"})
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "HK.00700", syms[0].String())
	assert.Equal(t, "A.600519", syms[1].String())

	_, err = ParseAll([]string{"HK.00700", ""})
	assert.Error(t, err)
}
