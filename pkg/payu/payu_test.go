package payu

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCfg = Config{
	MerchantKey:  "gtKFFx",
	MerchantSalt: "eCwWELxi",
	BaseURL:      "https://test.payu.in/_payment",
}

var testReq = Request{
	TxnID:       "CONSULTATION_1700000000000",
	Amount:      "1500.00",
	ProductInfo: "Consultation with Asha Rao on 2023-11-14 10:00",
	FirstName:   "Ravi",
	Email:       "ravi@example.com",
}

func TestGenerateHashSequence(t *testing.T) {
	// The forward sequence is key|txnid|amount|productinfo|firstname|email
	// followed by ten empty slots and the salt.
	raw := strings.Join([]string{
		testCfg.MerchantKey,
		testReq.TxnID,
		testReq.Amount,
		testReq.ProductInfo,
		testReq.FirstName,
		testReq.Email,
		"", "", "", "", "", "", "", "", "", "",
		testCfg.MerchantSalt,
	}, "|")
	sum := sha512.Sum512([]byte(raw))

	assert.Equal(t, hex.EncodeToString(sum[:]), GenerateHash(testCfg, testReq))
}

func TestVerifyHashRoundTrip(t *testing.T) {
	// Simulate the gateway: build the reverse-order response hash for a
	// successful transaction and check that verification accepts it.
	raw := strings.Join([]string{
		testCfg.MerchantSalt,
		"success",
		"", "", "", "", "", "", "", "", "", "",
		testReq.Email,
		testReq.FirstName,
		testReq.ProductInfo,
		testReq.Amount,
		testReq.TxnID,
		testCfg.MerchantKey,
	}, "|")
	sum := sha512.Sum512([]byte(raw))
	responseHash := hex.EncodeToString(sum[:])

	assert.True(t, VerifyHash(testCfg, testReq, "success", responseHash))
	assert.True(t, VerifyHash(testCfg, testReq, "success", strings.ToUpper(responseHash)))
	assert.False(t, VerifyHash(testCfg, testReq, "failure", responseHash))
}

func TestVerifyHashRejectsTamperedFields(t *testing.T) {
	raw := strings.Join([]string{
		testCfg.MerchantSalt,
		"success",
		"", "", "", "", "", "", "", "", "", "",
		testReq.Email,
		testReq.FirstName,
		testReq.ProductInfo,
		testReq.Amount,
		testReq.TxnID,
		testCfg.MerchantKey,
	}, "|")
	sum := sha512.Sum512([]byte(raw))
	responseHash := hex.EncodeToString(sum[:])

	flip := func(s string) string {
		b := []byte(s)
		if b[0] == 'x' {
			b[0] = 'y'
		} else {
			b[0] = 'x'
		}
		return string(b)
	}

	cases := map[string]Request{
		"amount":      {TxnID: testReq.TxnID, Amount: flip(testReq.Amount), ProductInfo: testReq.ProductInfo, FirstName: testReq.FirstName, Email: testReq.Email},
		"txnid":       {TxnID: flip(testReq.TxnID), Amount: testReq.Amount, ProductInfo: testReq.ProductInfo, FirstName: testReq.FirstName, Email: testReq.Email},
		"email":       {TxnID: testReq.TxnID, Amount: testReq.Amount, ProductInfo: testReq.ProductInfo, FirstName: testReq.FirstName, Email: flip(testReq.Email)},
		"productinfo": {TxnID: testReq.TxnID, Amount: testReq.Amount, ProductInfo: flip(testReq.ProductInfo), FirstName: testReq.FirstName, Email: testReq.Email},
	}
	for field, tampered := range cases {
		assert.Falsef(t, VerifyHash(testCfg, tampered, "success", responseHash), "tampered %s must fail verification", field)
	}
}

func TestVerifyHashRejectsTamperedHash(t *testing.T) {
	raw := strings.Join([]string{
		testCfg.MerchantSalt,
		"success",
		"", "", "", "", "", "", "", "", "", "",
		testReq.Email,
		testReq.FirstName,
		testReq.ProductInfo,
		testReq.Amount,
		testReq.TxnID,
		testCfg.MerchantKey,
	}, "|")
	sum := sha512.Sum512([]byte(raw))
	responseHash := hex.EncodeToString(sum[:])

	tampered := []byte(responseHash)
	if tampered[10] == 'a' {
		tampered[10] = 'b'
	} else {
		tampered[10] = 'a'
	}
	assert.False(t, VerifyHash(testCfg, testReq, "success", string(tampered)))
}

func TestVerifyRequestHash(t *testing.T) {
	requestHash := GenerateHash(testCfg, testReq)

	require.True(t, VerifyRequestHash(testCfg, testReq, requestHash))

	tampered := requestHash[:len(requestHash)-1] + "0"
	if tampered == requestHash {
		tampered = requestHash[:len(requestHash)-1] + "1"
	}
	assert.False(t, VerifyRequestHash(testCfg, testReq, tampered))

	other := testReq
	other.Amount = "1.00"
	assert.False(t, VerifyRequestHash(testCfg, other, requestHash))
}
