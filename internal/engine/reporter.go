package engine

import (
	. "bourse/internal/common"

	"github.com/rs/zerolog/log"
)

// Reporter is told about every execution and every rejected order. It is
// called with the asset's market locked and must not call back into the
// engine.
type Reporter interface {
	ReportTrade(trade Trade) error
	ReportRejection(order Order, err error) error
}

// LogReporter writes executions and rejections to the global logger.
type LogReporter struct{}

func (LogReporter) ReportTrade(trade Trade) error {
	log.Info().
		Str("trade", trade.UUID).
		Str("buyer", trade.Buyer).
		Str("seller", trade.Seller).
		Str("asset", trade.Asset.String()).
		Int64("quantity", trade.Quantity).
		Int64("price", trade.Price).
		Msg("trade executed")
	return nil
}

func (LogReporter) ReportRejection(order Order, err error) error {
	log.Warn().
		Err(err).
		Str("owner", order.Owner).
		Str("side", order.Side.String()).
		Str("asset", order.Asset.String()).
		Int64("quantity", order.Quantity).
		Int64("price", order.Price).
		Msg("order rejected")
	return nil
}
