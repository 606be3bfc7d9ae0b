package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// AccountType represents different account types in Bybit.
type AccountType string

const (
	AccountTypeUnified  AccountType = "UNIFIED"
	AccountTypeContract AccountType = "CONTRACT"
)

// Balance represents a coin balance in the account.
type Balance struct {
	Coin             string
	WalletBalance    float64
	AvailableToTrade float64
	Locked           float64
}

// GetCoinBalance retrieves the balance of a single coin from the unified
// wallet.
func (c *Client) GetCoinBalance(ctx context.Context, accountType AccountType, coin string) (*Balance, error) {
	params := map[string]interface{}{
		"accountType": string(accountType),
		"coin":        coin,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account balance: %w", err)
	}

	balances, err := c.parseWalletResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse account balance response: %w", err)
	}

	for i := range balances {
		if balances[i].Coin == coin {
			return &balances[i], nil
		}
	}

	return nil, fmt.Errorf("coin %s not found in account", coin)
}

// GetTradableBalance returns the balance available for opening new positions
// in the given coin.
func (c *Client) GetTradableBalance(ctx context.Context, accountType AccountType, coin string) (float64, error) {
	balance, err := c.GetCoinBalance(ctx, accountType, coin)
	if err != nil {
		return 0, err
	}

	// Unified accounts report the tradable amount; fall back to the wallet
	// balance when the field is absent.
	if balance.AvailableToTrade > 0 {
		return balance.AvailableToTrade, nil
	}
	return balance.WalletBalance, nil
}

// parseWalletResponse parses the wallet balance API response.
func (c *Client) parseWalletResponse(response interface{}) ([]Balance, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}

	if serverResp.RetCode != 0 {
		return nil, &APIError{Code: serverResp.RetCode, Message: serverResp.RetMsg}
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var walletResult struct {
		List []struct {
			AccountType string `json:"accountType"`
			Coin        []struct {
				Coin                string `json:"coin"`
				WalletBalance       string `json:"walletBalance"`
				AvailableToWithdraw string `json:"availableToWithdraw"`
				AvailableToTrade    string `json:"availableBalance"`
				Locked              string `json:"locked"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &walletResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet result: %w", err)
	}

	var balances []Balance
	for _, account := range walletResult.List {
		for _, coin := range account.Coin {
			balances = append(balances, Balance{
				Coin:             coin.Coin,
				WalletBalance:    parseBalanceField(coin.WalletBalance),
				AvailableToTrade: parseBalanceField(coin.AvailableToTrade),
				Locked:           parseBalanceField(coin.Locked),
			})
		}
	}

	return balances, nil
}

func parseBalanceField(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
