// Package symbol parses stock identifiers into their canonical
// MARKET.CODE form and normalizes A-share prefixes.
package symbol

import (
	"fmt"
	"regexp"
	"strings"

	"invest-analyzer/internal/errs"
	"invest-analyzer/internal/model"
)

// Symbol 规范化后的股票标识
type Symbol struct {
	Market model.Market
	Code   string
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s.%s", s.Market, s.Code)
}

var (
	hkCodeRe = regexp.MustCompile(`^\d{5}$`)
	aCodeRe  = regexp.MustCompile(`^[036]\d{5}$`)
	usCodeRe = regexp.MustCompile(`^[A-Z][A-Z0-9.]*$`)
)

// Parse accepts "HK.00700", "US.NVDA", "SH.600519", "SZ.000001", "A.600519"
// and bare codes with market inference. SH/SZ prefixes normalize to market A.
func Parse(raw string) (Symbol, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Symbol{}, errs.Invalid(raw, "empty symbol")
	}

	if i := strings.IndexByte(s, '.'); i > 0 {
		prefix := strings.ToUpper(s[:i])
		code := strings.ToUpper(s[i+1:])
		if code == "" {
			return Symbol{}, errs.Invalid(raw, "empty code")
		}
		switch prefix {
		case "HK":
			return Symbol{Market: model.MarketHK, Code: code}, nil
		case "US":
			return Symbol{Market: model.MarketUS, Code: code}, nil
		case "A", "SH", "SZ", "CN":
			return Symbol{Market: model.MarketA, Code: code}, nil
		}
		// A US ticker can itself contain a dot (BRK.B); fall through to
		// inference on the whole string.
	}

	return infer(strings.ToUpper(s))
}

func infer(code string) (Symbol, error) {
	switch {
	case aCodeRe.MatchString(code):
		return Symbol{Market: model.MarketA, Code: code}, nil
	case hkCodeRe.MatchString(code):
		return Symbol{Market: model.MarketHK, Code: code}, nil
	case usCodeRe.MatchString(code):
		return Symbol{Market: model.MarketUS, Code: code}, nil
	}
	return Symbol{}, errs.Invalid(code, "cannot infer market")
}

// ParseAll parses a list of identifiers, failing on the first bad one.
func ParseAll(raw []string) ([]Symbol, error) {
	out := make([]Symbol, 0, len(raw))
	for _, r := range raw {
		sym, err := Parse(r)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, nil
}
