package bank

import "encoding/json"

type ziraatAccountsResponse struct {
	Accounts []json.RawMessage `json:"accounts"`
}

type ziraatAccount struct {
	AccountID     flexString `json:"accountId"`
	AccountNumber flexString `json:"accountNumber"`
	AccountName   flexString `json:"accountName"`
	Currency      flexString `json:"currency"`
	IBAN          flexString `json:"iban"`
	AccountType   flexString `json:"accountType"`
}

type ziraatTransactionsResponse struct {
	Transactions []json.RawMessage `json:"transactions"`
}

type ziraatTransaction struct {
	TransactionID    flexString  `json:"transactionId"`
	ReferenceNumber  flexString  `json:"referenceNumber"`
	ValueDate        flexDate    `json:"valueDate"`
	TransactionDate  flexDate    `json:"transactionDate"`
	Amount           flexDecimal `json:"amount"`
	Description      flexString  `json:"description"`
	CounterpartyName flexString  `json:"counterpartyName"`
	CounterpartyIBAN flexString  `json:"counterpartyIban"`
	Balance          flexDecimal `json:"balance"`
	BalanceAfter     flexDecimal `json:"balanceAfter"`
}

type ziraatRatesResponse struct {
	Rates []json.RawMessage `json:"rates"`
}

type ziraatRate struct {
	CurrencyCode flexString  `json:"currencyCode"`
	BuyingRate   flexDecimal `json:"buyingRate"`
	BuyRate      flexDecimal `json:"buyRate"`
}
