package bank

import "encoding/json"

type qnbAccountsResponse struct {
	Accounts []json.RawMessage `json:"accounts"`
}

type qnbAccount struct {
	AccountID     flexString `json:"accountId"`
	AccountNumber flexString `json:"accountNumber"`
	AccountName   flexString `json:"accountName"`
	Currency      flexString `json:"currency"`
	IBAN          flexString `json:"iban"`
	AccountType   flexString `json:"accountType"`
}

type qnbTransactionsResponse struct {
	Transactions []json.RawMessage `json:"transactions"`
}

type qnbTransaction struct {
	TransactionID    flexString  `json:"transactionId"`
	ReferenceNo      flexString  `json:"referenceNo"`
	ValueDate        flexDate    `json:"valueDate"`
	TransactionDate  flexDate    `json:"transactionDate"`
	Amount           flexDecimal `json:"amount"`
	Description      flexString  `json:"description"`
	CounterpartyName flexString  `json:"counterpartyName"`
	SenderName       flexString  `json:"senderName"`
	CounterpartyIBAN flexString  `json:"counterpartyIban"`
	SenderIBAN       flexString  `json:"senderIban"`
	BalanceAfter     flexDecimal `json:"balanceAfter"`
}

// qnbRatesResponse carries the list under either key depending on API version
type qnbRatesResponse struct {
	Rates         []json.RawMessage `json:"rates"`
	ExchangeRates []json.RawMessage `json:"exchangeRates"`
}

type qnbRate struct {
	CurrencyCode flexString  `json:"currencyCode"`
	Currency     flexString  `json:"currency"`
	BuyRate      flexDecimal `json:"buyRate"`
	BuyingRate   flexDecimal `json:"buyingRate"`
}
