package bank

import "encoding/json"

type garantiAccountsResponse struct {
	Accounts []json.RawMessage `json:"accounts"`
}

type garantiAccount struct {
	AccountID     flexString `json:"accountId"`
	AccountNumber flexString `json:"accountNumber"`
	AccountName   flexString `json:"accountName"`
	Currency      flexString `json:"currency"`
	IBAN          flexString `json:"iban"`
	AccountType   flexString `json:"accountType"`
}

type garantiTransactionsResponse struct {
	Transactions []json.RawMessage `json:"transactions"`
}

type garantiTransaction struct {
	TransactionID    flexString  `json:"transactionId"`
	ValueDate        flexDate    `json:"valueDate"`
	Amount           flexDecimal `json:"amount"`
	Description      flexString  `json:"description"`
	CounterpartyName flexString  `json:"counterpartyName"`
	CounterpartyIBAN flexString  `json:"counterpartyIban"`
	BalanceAfter     flexDecimal `json:"balanceAfter"`
}

type garantiRatesResponse struct {
	Rates []json.RawMessage `json:"rates"`
}

type garantiRate struct {
	Currency flexString  `json:"currency"`
	BuyRate  flexDecimal `json:"buyRate"`
}
