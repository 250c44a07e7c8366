package models

import (
	"encoding/json"
	"fmt"
)

// Settlement types accepted by the network.
const (
	SettlementTypeNPNP = "NP-NP"
	SettlementTypeNIL  = "NIL"
	SettlementTypeMISC = "MISC"
)

const CurrencyINR = "INR"

// Amount is a decimal string in a currency, e.g. {"currency":"INR","value":"50.00"}.
type Amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

func INR(value string) Amount {
	return Amount{Currency: CurrencyINR, Value: value}
}

type PartyAmount struct {
	Amount Amount `json:"amount"`
}

type BankDetails struct {
	AccountNo string `json:"account_no"`
	IFSCCode  string `json:"ifsc_code"`
}

type Provider struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	BankDetails BankDetails `json:"bank_details"`
	Amount      Amount      `json:"amount"`
}

// Order is one order line of a settlement. Every part is optional so that
// partial orders (MISC) can be expressed.
type Order struct {
	ID               string       `json:"id,omitempty"`
	InterParticipant *PartyAmount `json:"inter_participant,omitempty"`
	Collector        *PartyAmount `json:"collector,omitempty"`
	Provider         *Provider    `json:"provider,omitempty"`
	Self             *PartyAmount `json:"self,omitempty"`
}

// Settlement is the settle instruction. An empty Settlement encodes as {}.
type Settlement struct {
	Type   string  `json:"type,omitempty"`
	ID     string  `json:"id,omitempty"`
	Orders []Order `json:"orders,omitempty"`
}

type SettleMessage struct {
	CollectorAppID string     `json:"collector_app_id,omitempty"`
	ReceiverAppID  string     `json:"receiver_app_id,omitempty"`
	Settlement     Settlement `json:"settlement"`
}

type ReportMessage struct {
	RefTransactionID string `json:"ref_transaction_id"`
	RefMessageID     string `json:"ref_message_id"`
}

var validSettlementTypes = map[string]bool{
	SettlementTypeNPNP: true,
	SettlementTypeNIL:  true,
	SettlementTypeMISC: true,
}

func IsValidSettlementType(t string) bool {
	return validSettlementTypes[t]
}

// DecodeSettleMessage decodes the message of a settle request.
func DecodeSettleMessage(raw json.RawMessage) (*SettleMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("message is required")
	}
	var msg SettleMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid settle message: %w", err)
	}
	return &msg, nil
}

// DecodeReportMessage decodes the message of a report request.
func DecodeReportMessage(raw json.RawMessage) (*ReportMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("message is required")
	}
	var msg ReportMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid report message: %w", err)
	}
	return &msg, nil
}

// Validate checks the report references are present.
func (m *ReportMessage) Validate() error {
	if m.RefTransactionID == "" {
		return fmt.Errorf("ref_transaction_id is required")
	}
	if m.RefMessageID == "" {
		return fmt.Errorf("ref_message_id is required")
	}
	return nil
}
