package common

import (
	"errors"
	"strings"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAsset      = errors.New("invalid asset")
	ErrInvalidSide       = errors.New("invalid side")
	ErrInvalidUser       = errors.New("invalid user")
)

type Side int

const (
	Buy Side = iota
	Sell
)

// ParseSide accepts "buy" or "sell" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, ErrInvalidSide
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	}
	return "Unknown"
}

// Asset is an upper-case ticker symbol. Use ParseAsset to build one from
// untrusted input.
type Asset string

// USD is the default cash asset. Buy orders reserve it and sellers are paid
// in it.
const USD Asset = "USD"

const maxAssetLen = 12

// ParseAsset validates and normalises a ticker symbol.
func ParseAsset(s string) (Asset, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) == 0 || len(s) > maxAssetLen {
		return "", ErrInvalidAsset
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return "", ErrInvalidAsset
		}
	}
	return Asset(s), nil
}

func (a Asset) String() string {
	return string(a)
}
