package invoice

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Payment is the payment confirmation attached to a booking request.
// Gateways and clients send it in several shapes; ParsePayment folds the
// known key spellings into these fields.
type Payment struct {
	Method              string
	Status              string
	Success             *bool
	ReceiptNumber       string
	TransactionID       string
	AuthorizationNumber string
	// Hints holds free text (type, description, channel...) used to infer
	// the method when no explicit label is sent.
	Hints []string
}

var (
	statusKeys  = []string{"status", "estado", "state", "payment_status", "paymentStatus"}
	successKeys = []string{"success", "exito", "paid", "ok", "approved"}
	receiptKeys = []string{"receiptNumber", "receipt_number", "receipt", "numero_recibo", "recibo"}
	txnKeys     = []string{"transactionId", "transaction_id", "txnId", "txn_id", "id_transaccion"}
	authKeys    = []string{"authorizationNumber", "authorization_number", "numero_autorizacion", "authCode", "auth_code"}
	methodKeys  = []string{"method", "metodo", "metodo_pago", "paymentMethod", "payment_method"}
	hintKeys    = []string{"type", "tipo", "description", "descripcion", "provider", "channel", "gateway"}
)

// Widths of the invoice columns the caller's values are copied into.
const (
	MaxMethodLength        = 40
	MaxAuthorizationLength = 80
)

// Problems lists the fields that would not fit their invoice column.
func (p Payment) Problems() []string {
	var out []string
	if n := utf8.RuneCountInString(strings.TrimSpace(p.Method)); n > MaxMethodLength {
		out = append(out, fmt.Sprintf("payment.method must be at most %d characters", MaxMethodLength))
	}
	if n := utf8.RuneCountInString(p.AuthorizationNumber); n > MaxAuthorizationLength {
		out = append(out, fmt.Sprintf("payment.authorizationNumber must be at most %d characters", MaxAuthorizationLength))
	}
	return out
}

// ParsePayment reads a JSON payment object. Anything that is not a JSON
// object yields an empty Payment.
func ParsePayment(raw []byte) Payment {
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Payment{}
	}
	p := Payment{
		Method:              firstString(doc, methodKeys),
		Status:              firstString(doc, statusKeys),
		ReceiptNumber:       firstString(doc, receiptKeys),
		TransactionID:       firstString(doc, txnKeys),
		AuthorizationNumber: firstString(doc, authKeys),
	}
	for _, k := range successKeys {
		if v := doc.Get(k); v.Exists() {
			b := truthy(v)
			p.Success = &b
			break
		}
	}
	for _, k := range hintKeys {
		if v := doc.Get(k); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			p.Hints = append(p.Hints, v.Str)
		}
	}
	return p
}

// firstString returns the first non-empty scalar found under keys. Numbers
// are accepted because gateways often send receipt ids as integers.
func firstString(doc gjson.Result, keys []string) string {
	for _, k := range keys {
		v := doc.Get(k)
		switch v.Type {
		case gjson.String:
			if s := strings.TrimSpace(v.Str); s != "" {
				return s
			}
		case gjson.Number:
			return v.Raw
		}
	}
	return ""
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "1", "yes", "si", "sí", "ok":
			return true
		}
	}
	return false
}
