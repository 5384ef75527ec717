package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepulse/paper-engine/internal/models"
	"github.com/tradepulse/paper-engine/internal/prices"
)

func TestClassify(t *testing.T) {
	suffixes := []string{"USDT", "USDC", "-USD"}

	assert.Equal(t, models.AssetCrypto, Classify("BTCUSDT", suffixes))
	assert.Equal(t, models.AssetCrypto, Classify("ethusdt", suffixes))
	assert.Equal(t, models.AssetCrypto, Classify("SOL-USD", suffixes))
	assert.Equal(t, models.AssetEquity, Classify("AAPL", suffixes))
	assert.Equal(t, models.AssetEquity, Classify("USDTFR", suffixes)) // suffix, not substring
}

func TestRouter_ForAssetClass(t *testing.T) {
	oracle := prices.NewStaticOracle()
	router := &Router{
		Equity: NewEquityPaper(oracle, 0),
		Crypto: NewCryptoPaper(oracle, 0),
	}

	equity, err := router.ForAssetClass(models.AssetEquity)
	require.NoError(t, err)
	assert.Equal(t, "alpaca-paper", equity.Name())

	crypto, err := router.ForAssetClass(models.AssetCrypto)
	require.NoError(t, err)
	assert.Equal(t, "binance-paper", crypto.Name())

	_, err = router.ForAssetClass("bonds")
	assert.Error(t, err)
}

func TestRouter_MissingAdapter(t *testing.T) {
	router := &Router{Equity: NewEquityPaper(prices.NewStaticOracle(), 0)}

	_, err := router.ForAssetClass(models.AssetCrypto)
	assert.Error(t, err)
}

func TestPaperBroker_FillsAtOraclePrice(t *testing.T) {
	oracle := prices.NewStaticOracle()
	oracle.SetPrice("AAPL", decimal.NewFromInt(200))
	broker := NewEquityPaper(oracle, 0)

	fill, err := broker.SubmitMarketOrder(context.Background(), "AAPL", models.DirectionBuy, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.True(t, fill.Price.Equal(decimal.NewFromInt(200)))
	assert.NotEmpty(t, fill.BrokerRef)
	assert.False(t, fill.Timestamp.IsZero())
}

func TestPaperBroker_SlippageMovesAgainstTaker(t *testing.T) {
	oracle := prices.NewStaticOracle()
	oracle.SetPrice("BTCUSDT", decimal.NewFromInt(50000))
	broker := NewCryptoPaper(oracle, 10) // 10 bps

	buy, err := broker.SubmitMarketOrder(context.Background(), "BTCUSDT", models.DirectionBuy, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, buy.Price.Equal(decimal.NewFromInt(50050)), "buy fill %s", buy.Price)

	sell, err := broker.SubmitMarketOrder(context.Background(), "BTCUSDT", models.DirectionSell, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, sell.Price.Equal(decimal.NewFromInt(49950)), "sell fill %s", sell.Price)
}

func TestPaperBroker_UnknownSymbolIsRejection(t *testing.T) {
	broker := NewEquityPaper(prices.NewStaticOracle(), 0)

	_, err := broker.SubmitMarketOrder(context.Background(), "NOPE", models.DirectionBuy, decimal.NewFromInt(1))
	require.Error(t, err)
	assert.True(t, IsRejection(err))
}

func TestPaperBroker_InvalidOrderIsRejection(t *testing.T) {
	oracle := prices.NewStaticOracle()
	oracle.SetPrice("AAPL", decimal.NewFromInt(200))
	broker := NewEquityPaper(oracle, 0)

	_, err := broker.SubmitMarketOrder(context.Background(), "AAPL", models.DirectionBuy, decimal.Zero)
	assert.True(t, IsRejection(err))

	_, err = broker.SubmitMarketOrder(context.Background(), "AAPL", "hold", decimal.NewFromInt(1))
	assert.True(t, IsRejection(err))
}

type failingOracle struct{ err error }

func (o *failingOracle) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, o.err
}

func TestPaperBroker_TransportErrorIsNotRejection(t *testing.T) {
	transport := errors.New("connection reset")
	broker := NewEquityPaper(&failingOracle{err: transport}, 0)

	_, err := broker.SubmitMarketOrder(context.Background(), "AAPL", models.DirectionBuy, decimal.NewFromInt(1))
	require.Error(t, err)
	assert.False(t, IsRejection(err))
	assert.ErrorIs(t, err, transport)
}

func TestIsRejection_WrappedError(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &OrderRejectedError{Reason: "bad symbol"})
	assert.True(t, IsRejection(wrapped))
	assert.False(t, IsRejection(errors.New("timeout")))
}
