package models

// CallbackEnvelope mirrors the gateway's STK callback payload. The gateway
// nests everything under Body.stkCallback.
type CallbackEnvelope struct {
	Body struct {
		StkCallback StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem is a name/value pair from the callback metadata list. Value
// can be a string or a number depending on the field, so it is kept loose.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}
