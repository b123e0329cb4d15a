// Package payu implements the hash contract of the PayU hosted-checkout
// gateway. The field ordering of both hash directions is a bit-exact wire
// contract with the gateway and must never be changed independently of the
// merchant configuration: requests are signed with the fields in forward
// order and the salt last, while callbacks are verified with the fields
// reversed, the transaction status folded in, and the salt first.
package payu

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Config carries the merchant credentials and the gateway endpoint.
type Config struct {
	MerchantKey  string
	MerchantSalt string
	BaseURL      string
}

// Request is the field tuple participating in the signature. The five UDF
// ("user defined field") slots are required placeholders in the hash
// sequence; this integration leaves them empty.
type Request struct {
	TxnID       string
	Amount      string
	ProductInfo string
	FirstName   string
	Email       string
}

// GenerateHash computes the forward request signature:
// sha512(key|txnid|amount|productinfo|firstname|email|udf1..udf5||||||salt).
func GenerateHash(cfg Config, req Request) string {
	fields := []string{
		cfg.MerchantKey,
		req.TxnID,
		req.Amount,
		req.ProductInfo,
		req.FirstName,
		req.Email,
		"", "", "", "", "", // udf1..udf5
		"", "", "", "", "",
		cfg.MerchantSalt,
	}
	sum := sha512.Sum512([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

// VerifyHash checks a gateway callback signature. The response sequence is
// the reverse of the request one with the received status inserted after
// the salt and ten empty UDF slots:
// sha512(salt|status|udf10..udf1|email|firstname|productinfo|amount|txnid|key).
// The comparison is constant-time.
func VerifyHash(cfg Config, req Request, status, receivedHash string) bool {
	fields := []string{
		cfg.MerchantSalt,
		status,
		"", "", "", "", "", // udf10..udf6
		"", "", "", "", "", // udf5..udf1
		req.Email,
		req.FirstName,
		req.ProductInfo,
		req.Amount,
		req.TxnID,
		cfg.MerchantKey,
	}
	sum := sha512.Sum512([]byte(strings.Join(fields, "|")))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(receivedHash))) == 1
}

// VerifyRequestHash checks a callback against the forward request signature.
// The failure callback is authenticated this way: the gateway echoes the
// original request hash rather than a status-folded response hash.
func VerifyRequestHash(cfg Config, req Request, receivedHash string) bool {
	expected := GenerateHash(cfg, req)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(receivedHash))) == 1
}
