package config

import "FlowSentinel/internal/model"

// DefaultGroups returns the XRP product groups shown when none are configured.
func DefaultGroups() []model.Group {
	return []model.Group{
		{Name: "Index ETFs", Instruments: []model.Instrument{
			{Symbol: "EZPZ", Description: "Franklin Templeton"},
			{Symbol: "GDLC", Description: "Grayscale Digital Large Cap"},
			{Symbol: "NCIQ", Description: "Hashdex Nasdaq Crypto Index"},
			{Symbol: "BITW", Description: "Bitwise 10 Crypto Index"},
		}},
		{Name: "Spot ETFs", Instruments: []model.Instrument{
			{Symbol: "GXRP", Description: "Grayscale"},
			{Symbol: "XRP", Description: "Bitwise XRP"},
			{Symbol: "XRPC", Description: "Canary Capital XRP"},
			{Symbol: "XRPZ", Description: "Franklin XRP"},
			{Symbol: "TOXR", Description: "21Shares"},
			{Symbol: "XRPR", Description: "REX-Osprey"},
		}},
		{Name: "Futures ETFs", Instruments: []model.Instrument{
			{Symbol: "UXRP", Description: "ProShares Ultra"},
			{Symbol: "XRPI", Description: "Volatility Shares Trust"},
			{Symbol: "XRPM", Description: "Amplify"},
			{Symbol: "XRPT", Description: "Volatility Shares 2x"},
			{Symbol: "XXRP", Description: "Teucrium 2x Long"},
			{Symbol: "XRPK", Description: "T-REX 2X Long"},
		}},
		{Name: "Canada ETFs", Instruments: []model.Instrument{
			{Symbol: "XRP.TO", Description: "Purpose"},
			{Symbol: "XRPP-B.TO", Description: "Purpose"},
			{Symbol: "XRPP-U.TO", Description: "Purpose USD Non-Hedged"},
			{Symbol: "XRPP.TO", Description: "Purpose CAD Hedged"},
			{Symbol: "XRPQ-U.TO", Description: "3iQ USD"},
			{Symbol: "XRPQ.TO", Description: "3iQ"},
			{Symbol: "XRP.NE", Description: "Canada ETF"},
			{Symbol: "XRPP.NE", Description: "Purpose NEO"},
		}},
	}
}
