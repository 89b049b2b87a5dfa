package services

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"obpayments-backend/models"
	"obpayments-backend/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PaymentType is the capability set that parameterizes the one generic
// submission flow per payment product. Controllers stay thin: everything a
// product does differently lives here, the idempotency and consumption
// logic is never duplicated per type.
type PaymentType struct {
	// Route segments, e.g. "domestic-payments" / "domestic-payment-consents".
	Code        string
	ConsentCode string

	// ConsentPrefix ties consent ids back to the product.
	ConsentPrefix string

	requiresExecutionDate bool
	international         bool
}

var (
	DomesticPayments = &PaymentType{
		Code:          "domestic-payments",
		ConsentCode:   "domestic-payment-consents",
		ConsentPrefix: models.ConsentPrefixDomestic,
	}
	DomesticScheduledPayments = &PaymentType{
		Code:                  "domestic-scheduled-payments",
		ConsentCode:           "domestic-scheduled-payment-consents",
		ConsentPrefix:         models.ConsentPrefixDomesticScheduled,
		requiresExecutionDate: true,
	}
	InternationalPayments = &PaymentType{
		Code:          "international-payments",
		ConsentCode:   "international-payment-consents",
		ConsentPrefix: models.ConsentPrefixInternational,
		international: true,
	}
)

// PaymentTypes lists every product the server exposes.
var PaymentTypes = []*PaymentType{
	DomesticPayments,
	DomesticScheduledPayments,
	InternationalPayments,
}

// PaymentTypeForConsentID resolves the product from a consent id prefix.
func PaymentTypeForConsentID(consentID string) *PaymentType {
	prefix := models.ConsentTypeOf(consentID)
	for _, t := range PaymentTypes {
		if t.ConsentPrefix == prefix {
			return t
		}
	}
	return nil
}

// NewConsentID mints a product-prefixed consent id.
func (t *PaymentType) NewConsentID() string {
	return t.ConsentPrefix + "-" + uuid.NewString()
}

// ValidateInitiation applies product-level rules to an initiation block at
// consent-creation time.
func (t *PaymentType) ValidateInitiation(init *models.Initiation) error {
	if !utils.ValidAmount(init.InstructedAmount.Amount) {
		return fmt.Errorf("%w: malformed instructed amount %q", ErrValidationMismatch, init.InstructedAmount.Amount)
	}
	if t.requiresExecutionDate {
		if init.RequestedExecutionDateTime == "" {
			return fmt.Errorf("%w: requested execution date time is required", ErrValidationMismatch)
		}
		when, err := time.Parse(time.RFC3339, init.RequestedExecutionDateTime)
		if err != nil {
			return fmt.Errorf("%w: malformed requested execution date time", ErrValidationMismatch)
		}
		if when.Before(time.Now().UTC()) {
			return fmt.Errorf("%w: requested execution date time is in the past", ErrValidationMismatch)
		}
	}
	if t.international && init.CurrencyOfTransfer == "" {
		return fmt.Errorf("%w: currency of transfer is required", ErrValidationMismatch)
	}
	return nil
}

// ValidateAgainstConsent checks field-for-field that a payment repeats the
// economically significant fields of its consent's initiation: amount,
// currency, debtor/creditor accounts and execution date. A mismatch is a
// hard validation error, not an idempotency conflict.
func (t *PaymentType) ValidateAgainstConsent(consentInit, paymentInit *models.Initiation) error {
	if !utils.AmountEquals(consentInit.InstructedAmount.Amount, paymentInit.InstructedAmount.Amount) {
		return fmt.Errorf("%w: instructed amount differs from consent", ErrValidationMismatch)
	}
	if consentInit.InstructedAmount.Currency != paymentInit.InstructedAmount.Currency {
		return fmt.Errorf("%w: instructed amount currency differs from consent", ErrValidationMismatch)
	}
	if !reflect.DeepEqual(consentInit.DebtorAccount, paymentInit.DebtorAccount) {
		return fmt.Errorf("%w: debtor account differs from consent", ErrValidationMismatch)
	}
	if !reflect.DeepEqual(consentInit.CreditorAccount, paymentInit.CreditorAccount) {
		return fmt.Errorf("%w: creditor account differs from consent", ErrValidationMismatch)
	}
	if t.requiresExecutionDate && consentInit.RequestedExecutionDateTime != paymentInit.RequestedExecutionDateTime {
		return fmt.Errorf("%w: requested execution date time differs from consent", ErrValidationMismatch)
	}
	if t.international && consentInit.CurrencyOfTransfer != paymentInit.CurrencyOfTransfer {
		return fmt.Errorf("%w: currency of transfer differs from consent", ErrValidationMismatch)
	}
	return nil
}

// Charge mirrors the OB charge block computed at consent creation.
type Charge struct {
	ChargeBearer string                  `json:"charge_bearer"`
	Type         string                  `json:"type"`
	Amount       models.InstructedAmount `json:"amount"`
}

// ExchangeRateInformation is computed once at consent creation and is
// immutable afterwards. The rate is indicative only; market-rate lookup is
// out of scope.
type ExchangeRateInformation struct {
	UnitCurrency string  `json:"unit_currency"`
	ExchangeRate float64 `json:"exchange_rate"`
	RateType     string  `json:"rate_type"`
}

const (
	indicativeRate = 1.0925

	// Currency conversion fee as a fraction of the instructed amount.
	conversionFeeRate = 0.005
)

// ComputeCharges derives the charge block for a consent at creation time.
func (t *PaymentType) ComputeCharges(init *models.Initiation) datatypes.JSON {
	charges := []Charge{{
		ChargeBearer: "BorneByDebtor",
		Type:         "UK.OBIE.TransactionFee",
		Amount:       models.InstructedAmount{Amount: "1.50", Currency: init.InstructedAmount.Currency},
	}}
	if t.international {
		// Amount was validated upstream; ParseFloat is fine for a fee,
		// the lossy path never feeds an equality check.
		amt, _ := strconv.ParseFloat(init.InstructedAmount.Amount, 64)
		fee := utils.Round2(amt * conversionFeeRate)
		charges = append(charges, Charge{
			ChargeBearer: "BorneByDebtor",
			Type:         "UK.OBIE.CurrencyConversionFee",
			Amount: models.InstructedAmount{
				Amount:   strconv.FormatFloat(fee, 'f', 2, 64),
				Currency: init.InstructedAmount.Currency,
			},
		})
	}
	raw, _ := json.Marshal(charges)
	return raw
}

// ComputeExchangeRate derives the indicative exchange rate block for
// international consents; nil for domestic products.
func (t *PaymentType) ComputeExchangeRate(init *models.Initiation) datatypes.JSON {
	if !t.international {
		return nil
	}
	raw, _ := json.Marshal(ExchangeRateInformation{
		UnitCurrency: init.InstructedAmount.Currency,
		ExchangeRate: indicativeRate,
		RateType:     "Indicative",
	})
	return raw
}
