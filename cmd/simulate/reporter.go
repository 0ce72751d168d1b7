package main

import (
	"bourse/internal/common"

	"github.com/rs/zerolog/log"
)

// quietReporter keeps trades at debug level and drops rejections, which are
// expected when random traders run out of funds.
type quietReporter struct{}

func (quietReporter) ReportTrade(trade common.Trade) error {
	log.Debug().
		Str("buyer", trade.Buyer).
		Str("seller", trade.Seller).
		Str("asset", trade.Asset.String()).
		Int64("quantity", trade.Quantity).
		Int64("price", trade.Price).
		Msg("trade executed")
	return nil
}

func (quietReporter) ReportRejection(common.Order, error) error {
	return nil
}
