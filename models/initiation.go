package models

// Wire shapes shared by consent requests and payment submissions. The
// Initiation block is the economically significant part: a payment must
// repeat its consent's initiation field-for-field.

type InstructedAmount struct {
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3,uppercase"`
}

type AccountIdentification struct {
	SchemeName     string  `json:"scheme_name" validate:"required"`
	Identification string  `json:"identification" validate:"required"`
	Name           string  `json:"name"`
	SecondaryIdent *string `json:"secondary_identification,omitempty"`
}

type RemittanceInformation struct {
	Reference    string `json:"reference,omitempty"`
	Unstructured string `json:"unstructured,omitempty"`
}

type Initiation struct {
	InstructionIdentification string                 `json:"instruction_identification" validate:"required,max=35"`
	EndToEndIdentification    string                 `json:"end_to_end_identification" validate:"required,max=35"`
	InstructedAmount          InstructedAmount       `json:"instructed_amount" validate:"required"`
	DebtorAccount             *AccountIdentification `json:"debtor_account,omitempty"`
	CreditorAccount           AccountIdentification  `json:"creditor_account" validate:"required"`
	RemittanceInformation     *RemittanceInformation `json:"remittance_information,omitempty"`

	// Scheduled payments only.
	RequestedExecutionDateTime string `json:"requested_execution_date_time,omitempty"`

	// International payments only.
	CurrencyOfTransfer string `json:"currency_of_transfer,omitempty"`
}
