package fmp

import "github.com/shopspring/decimal"

// CompanyProfile is the subset of the FMP profile endpoint shown on the
// quote page.
type CompanyProfile struct {
	Symbol            string          `json:"symbol"`
	CompanyName       string          `json:"companyName"`
	Price             decimal.Decimal `json:"price"`
	Changes           decimal.Decimal `json:"changes"`
	Currency          string          `json:"currency"`
	Exchange          string          `json:"exchange"`
	ExchangeShortName string          `json:"exchangeShortName"`
	Industry          string          `json:"industry"`
	Sector            string          `json:"sector"`
	Website           string          `json:"website"`
	Description       string          `json:"description"`
	CEO               string          `json:"ceo"`
	MktCap            decimal.Decimal `json:"mktCap"`
	VolAvg            int64           `json:"volAvg"`
	Range             string          `json:"range"`
	Image             string          `json:"image"`
}

// Quote is one entry of the FMP batch quote endpoint.
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// TradedListing is one entry of the FMP available-traded list.
type TradedListing struct {
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Exchange          string          `json:"exchange"`
	ExchangeShortName string          `json:"exchangeShortName"`
	Type              string          `json:"type"`
}
