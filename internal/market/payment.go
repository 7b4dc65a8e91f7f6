package market

import "fmt"

// UnknownPaymentMethodError reports a payment-method code with no display label.
type UnknownPaymentMethodError struct {
	Code string
}

func (e *UnknownPaymentMethodError) Error() string {
	return fmt.Sprintf("unknown payment method %q", e.Code)
}

// paymentMethods maps Bisq payment-method codes to display labels.
var paymentMethods = map[string]string{
	"NATIONAL_BANK":              "National bank transfer",
	"SAME_BANK":                  "Transfer with same bank",
	"SPECIFIC_BANKS":             "Transfers with specific banks",
	"US_POSTAL_MONEY_ORDER":      "US Postal Money Order",
	"CASH_DEPOSIT":               "Cash Deposit",
	"MONEY_GRAM":                 "MoneyGram",
	"WESTERN_UNION":              "Western Union",
	"F2F":                        "Face to face (in person)",
	"JAPAN_BANK":                 "Japan Bank Furikomi",
	"NATIONAL_BANK_SHORT":        "National banks",
	"SAME_BANK_SHORT":            "Same bank",
	"SPECIFIC_BANKS_SHORT":       "Specific banks",
	"US_POSTAL_MONEY_ORDER_SHORT": "US Money Order",
	"CASH_DEPOSIT_SHORT":         "Cash Deposit",
	"MONEY_GRAM_SHORT":           "MoneyGram",
	"WESTERN_UNION_SHORT":        "Western Union",
	"F2F_SHORT":                  "F2F",
	"JAPAN_BANK_SHORT":           "Japan Furikomi",
	"UPHOLD":                     "Uphold",
	"MONEY_BEAM":                 "MoneyBeam (N26)",
	"POPMONEY":                   "Popmoney",
	"REVOLUT":                    "Revolut",
	"PERFECT_MONEY":              "Perfect Money",
	"ALI_PAY":                    "AliPay",
	"WECHAT_PAY":                 "WeChat Pay",
	"SEPA":                       "SEPA",
	"SEPA_INSTANT":               "SEPA Instant Payments",
	"FASTER_PAYMENTS":            "Faster Payments",
	"SWISH":                      "Swish",
	"CLEAR_X_CHANGE":             "Zelle (ClearXchange)",
	"CHASE_QUICK_PAY":            "Chase QuickPay",
	"INTERAC_E_TRANSFER":         "Interac e-Transfer",
	"HAL_CASH":                   "HalCash",
	"BLOCK_CHAINS":               "Altcoins",
	"PROMPT_PAY":                 "PromptPay",
	"ADVANCED_CASH":              "Advanced Cash",
	"BLOCK_CHAINS_INSTANT":       "Altcoins Instant",
	"OK_PAY":                     "OKPay",
	"CASH_APP":                   "Cash App",
	"VENMO":                      "Venmo",
	"UPHOLD_SHORT":               "Uphold",
	"MONEY_BEAM_SHORT":           "MoneyBeam (N26)",
	"POPMONEY_SHORT":             "Popmoney",
	"REVOLUT_SHORT":              "Revolut",
	"PERFECT_MONEY_SHORT":        "Perfect Money",
	"ALI_PAY_SHORT":              "AliPay",
	"WECHAT_PAY_SHORT":           "WeChat Pay",
	"SEPA_SHORT":                 "SEPA",
	"SEPA_INSTANT_SHORT":         "SEPA Instant",
	"FASTER_PAYMENTS_SHORT":      "Faster Payments",
	"SWISH_SHORT":                "Swish",
	"CLEAR_X_CHANGE_SHORT":       "Zelle",
	"CHASE_QUICK_PAY_SHORT":      "Chase QuickPay",
	"INTERAC_E_TRANSFER_SHORT":   "Interac e-Transfer",
	"HAL_CASH_SHORT":             "HalCash",
	"BLOCK_CHAINS_SHORT":         "Altcoins",
	"PROMPT_PAY_SHORT":           "PromptPay",
	"ADVANCED_CASH_SHORT":        "Advanced Cash",
	"BLOCK_CHAINS_INSTANT_SHORT": "Altcoins Instant",
	"OK_PAY_SHORT":               "OKPay",
	"CASH_APP_SHORT":             "Cash App",
	"VENMO_SHORT":                "Venmo",
}

// PaymentMethodLabel returns the display label for a payment-method code.
func PaymentMethodLabel(code string) (string, error) {
	label, ok := paymentMethods[code]
	if !ok {
		return "", &UnknownPaymentMethodError{Code: code}
	}
	return label, nil
}

// KnownPaymentMethod reports whether a label is registered for code.
func KnownPaymentMethod(code string) bool {
	_, ok := paymentMethods[code]
	return ok
}
