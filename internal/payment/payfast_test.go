package payment

import (
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmebooked/booking-api/internal/model"
)

var gateway = New(Config{
	Sandbox:    true,
	Passphrase: "jt7NOE43FZPn",
	ReturnURL:  "https://book.example.com/payment/return",
	CancelURL:  "https://book.example.com/payment/cancel",
	NotifyURL:  "https://book.example.com/webhooks/payfast",
})

func testAppointment() (*model.Business, *model.Appointment) {
	business := &model.Business{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
	}
	business.ID = uuid.New()
	appt := &model.Appointment{
		GuestName:   "Naledi M",
		GuestEmail:  "naledi@example.com",
		AmountToPay: 150,
	}
	appt.ID = uuid.New()
	return business, appt
}

func TestPaymentURL(t *testing.T) {
	business, appt := testAppointment()
	now := time.Unix(1748850000, 0)

	raw, err := gateway.PaymentURL(business, appt, "Haircut deposit", now)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "sandbox.payfast.co.za", u.Host)

	q := u.Query()
	assert.Equal(t, "10000100", q.Get("merchant_id"))
	assert.Equal(t, "150.00", q.Get("amount"))
	assert.Equal(t, "Haircut deposit", q.Get("item_name"))
	assert.Equal(t, fmt.Sprintf("APP-%s-1748850000", appt.ID), q.Get("m_payment_id"))
	assert.Len(t, q.Get("signature"), 32)
}

func TestPaymentURLRequiresCredentials(t *testing.T) {
	business, appt := testAppointment()
	business.MerchantKey = ""

	_, err := gateway.PaymentURL(business, appt, "deposit", time.Now())
	assert.Error(t, err)
}

func TestSignatureDependsOnPassphrase(t *testing.T) {
	business, appt := testAppointment()
	now := time.Unix(1748850000, 0)

	other := New(Config{Sandbox: true, Passphrase: "different"})
	a, err := gateway.PaymentURL(business, appt, "deposit", now)
	require.NoError(t, err)
	b, err := other.PaymentURL(business, appt, "deposit", now)
	require.NoError(t, err)

	sigA := mustQuery(t, a).Get("signature")
	sigB := mustQuery(t, b).Get("signature")
	assert.NotEqual(t, sigA, sigB)
}

func TestBuildAndParsePaymentID(t *testing.T) {
	id := uuid.New()
	mPaymentID := BuildPaymentID(id, time.Unix(1700000000, 0))

	parsed, err := ParsePaymentID(mPaymentID)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParsePaymentID("ORDER-123")
	assert.Error(t, err)
	_, err = ParsePaymentID("APP-not-a-real-uuid-here-1700000000")
	assert.Error(t, err)
}

func TestParseITN(t *testing.T) {
	id := uuid.New()
	body := fmt.Sprintf(
		"m_payment_id=APP-%s-1748850000&pf_payment_id=1089250&payment_status=COMPLETE&item_name=Haircut+deposit&amount_gross=150.00",
		id)

	n, err := ParseITN(body)
	require.NoError(t, err)
	assert.True(t, n.Complete())
	assert.Equal(t, "1089250", n.PFPaymentID)
	assert.Equal(t, "150.00", n.AmountGross)

	apptID, err := n.AppointmentID()
	require.NoError(t, err)
	assert.Equal(t, id, apptID)
}

func TestParseITNRejectsMissingPaymentID(t *testing.T) {
	_, err := ParseITN("payment_status=COMPLETE")
	assert.Error(t, err)
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	id := uuid.New()
	fields := []param{
		{"m_payment_id", fmt.Sprintf("APP-%s-1748850000", id)},
		{"pf_payment_id", "1089250"},
		{"payment_status", "COMPLETE"},
		{"item_name", "Haircut deposit"},
		{"amount_gross", "150.00"},
	}
	signature := gateway.sign(fields)

	var parts []string
	for _, kv := range fields {
		parts = append(parts, kv.key+"="+url.QueryEscape(kv.value))
	}
	parts = append(parts, "signature="+signature)
	body := strings.Join(parts, "&")

	n, err := ParseITN(body)
	require.NoError(t, err)
	assert.True(t, gateway.VerifySignature(n))

	// Tampering with the amount breaks the signature.
	tampered, err := ParseITN(strings.Replace(body, "150.00", "0.01", 1))
	require.NoError(t, err)
	assert.False(t, gateway.VerifySignature(tampered))
}

func mustQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query()
}
