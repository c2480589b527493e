package model

import "time"

const transTimeLayout = "20060102150405"

// C2BPayload is the notification body Daraja POSTs to the confirmation and
// validation URLs. Field names are fixed by the gateway.
type C2BPayload struct {
	TransactionType   string `json:"TransactionType"`
	TransID           string `json:"TransID"`
	TransTime         string `json:"TransTime"` // YYYYMMDDHHMMSS
	TransAmount       string `json:"TransAmount"`
	BusinessShortCode string `json:"BusinessShortCode"`
	BillRefNumber     string `json:"BillRefNumber"`
	InvoiceNumber     string `json:"InvoiceNumber"`
	OrgAccountBalance string `json:"OrgAccountBalance"`
	ThirdPartyTransID string `json:"ThirdPartyTransID"`
	MSISDN            string `json:"MSISDN"`
	FirstName         string `json:"FirstName"`
	MiddleName        string `json:"MiddleName"`
	LastName          string `json:"LastName"`
}

// C2BResult is the two-field acknowledgement shape the gateway requires,
// bit-for-bit. ResultCode 0 means accepted; anything else is a rejection.
type C2BResult struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func C2BSuccess(desc string) C2BResult {
	return C2BResult{ResultCode: 0, ResultDesc: desc}
}

func C2BFailure(desc string) C2BResult {
	return C2BResult{ResultCode: 1, ResultDesc: desc}
}

// ParseTransTime parses the gateway's 14-digit timestamp. Anything that does
// not parse falls back to now; a bad clock must not reject a real payment.
func ParseTransTime(s string) time.Time {
	t, err := time.Parse(transTimeLayout, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

// FormatTransTime renders t in the gateway's timestamp form.
func FormatTransTime(t time.Time) string {
	return t.Format(transTimeLayout)
}
