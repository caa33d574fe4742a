package oneinch

import "math/big"

// QuoteResponse is the subset of the quote payload the engine needs.
type QuoteResponse struct {
	FromToken       TokenInfo `json:"fromToken"`
	ToToken         TokenInfo `json:"toToken"`
	ToTokenAmount   string    `json:"toTokenAmount"`
	FromTokenAmount string    `json:"fromTokenAmount"`
	EstimatedGas    uint64    `json:"estimatedGas"`
}

// ToAmount parses ToTokenAmount as a non-negative integer in base units.
func (q QuoteResponse) ToAmount() (*big.Int, bool) {
	n, ok := new(big.Int).SetString(q.ToTokenAmount, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

// TokenInfo describes a token as reported by the API.
type TokenInfo struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// APIError is the error body returned with non-200 responses.
type APIError struct {
	StatusCode  int    `json:"statusCode"`
	Error       string `json:"error"`
	Description string `json:"description"`
}
