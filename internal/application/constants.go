package application

// Exchange name constants
const (
	ExchangeBinance = "BINANCE"
	ExchangeDeribit = "DERIBIT"
)
