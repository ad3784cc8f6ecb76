// Package payment integrates the PayFast gateway: building redirect
// URLs for deposit collection and verifying the ITN (Instant
// Transaction Notification) webhooks it posts back.
package payment

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/getmebooked/booking-api/internal/model"
)

const (
	LiveProcessURL    = "https://www.payfast.co.za/eng/process"
	SandboxProcessURL = "https://sandbox.payfast.co.za/eng/process"

	StatusComplete  = "COMPLETE"
	StatusCancelled = "CANCELLED"
)

type Config struct {
	Sandbox    bool
	Passphrase string
	ReturnURL  string
	CancelURL  string
	NotifyURL  string
}

type PayFast struct {
	cfg Config
}

func New(cfg Config) *PayFast {
	return &PayFast{cfg: cfg}
}

func (p *PayFast) processURL() string {
	if p.cfg.Sandbox {
		return SandboxProcessURL
	}
	return LiveProcessURL
}

// BuildPaymentID encodes the appointment identity into the gateway's
// m_payment_id. The timestamp suffix keeps retried payment attempts
// distinct on the gateway side.
func BuildPaymentID(appointmentID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("APP-%s-%d", appointmentID, now.Unix())
}

// ParsePaymentID recovers the appointment ID from an m_payment_id.
func ParsePaymentID(mPaymentID string) (uuid.UUID, error) {
	parts := strings.Split(mPaymentID, "-")
	// APP + 5 uuid groups + timestamp
	if len(parts) < 7 || parts[0] != "APP" {
		return uuid.Nil, fmt.Errorf("malformed payment id %q", mPaymentID)
	}
	raw := strings.Join(parts[1:6], "-")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed payment id %q: %w", mPaymentID, err)
	}
	return id, nil
}

type param struct {
	key   string
	value string
}

// PaymentURL builds the redirect that sends a guest to the gateway to
// pay the appointment's deposit. Parameter order is part of the
// signature contract and must not change.
func (p *PayFast) PaymentURL(business *model.Business, appt *model.Appointment, itemName string, now time.Time) (string, error) {
	if !business.HasMerchantCredentials() {
		return "", fmt.Errorf("business %s has no merchant credentials", business.ID)
	}

	params := []param{
		{"merchant_id", business.MerchantID},
		{"merchant_key", business.MerchantKey},
		{"return_url", p.cfg.ReturnURL},
		{"cancel_url", p.cfg.CancelURL},
		{"notify_url", p.cfg.NotifyURL},
		{"name_first", appt.GuestName},
		{"email_address", appt.GuestEmail},
		{"m_payment_id", BuildPaymentID(appt.ID, now)},
		{"amount", fmt.Sprintf("%.2f", appt.AmountToPay)},
		{"item_name", itemName},
	}

	signature := p.sign(params)
	params = append(params, param{"signature", signature})

	var sb strings.Builder
	sb.WriteString(p.processURL())
	sb.WriteByte('?')
	sb.WriteString(encode(params))
	return sb.String(), nil
}

// sign computes the md5 over the urlencoded non-empty parameters in
// order, with the passphrase appended when configured.
func (p *PayFast) sign(params []param) string {
	payload := encode(params)
	if p.cfg.Passphrase != "" {
		payload += "&passphrase=" + encodeValue(p.cfg.Passphrase)
	}
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func encode(params []param) string {
	var parts []string
	for _, kv := range params {
		if kv.value == "" {
			continue
		}
		parts = append(parts, kv.key+"="+encodeValue(kv.value))
	}
	return strings.Join(parts, "&")
}

// encodeValue matches the gateway's encoding: spaces become plus signs,
// everything else standard percent-encoding.
func encodeValue(v string) string {
	return url.QueryEscape(v)
}

// Notification is a parsed ITN post.
type Notification struct {
	MPaymentID    string
	PFPaymentID   string
	PaymentStatus string
	ItemName      string
	AmountGross   string
	Signature     string

	// raw preserves the posted field order for signature verification.
	raw []param
}

// AppointmentID extracts the appointment the notification refers to.
func (n *Notification) AppointmentID() (uuid.UUID, error) {
	return ParsePaymentID(n.MPaymentID)
}

// Complete reports whether the payment went through.
func (n *Notification) Complete() bool {
	return n.PaymentStatus == StatusComplete
}

// ParseITN decodes a raw ITN body. Field order is preserved because the
// signature is computed over the fields as posted.
func ParseITN(body string) (*Notification, error) {
	n := &Notification{}
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		key, rawValue, _ := strings.Cut(pair, "=")
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("malformed ITN field %q: %w", key, err)
		}
		switch key {
		case "m_payment_id":
			n.MPaymentID = value
		case "pf_payment_id":
			n.PFPaymentID = value
		case "payment_status":
			n.PaymentStatus = value
		case "item_name":
			n.ItemName = value
		case "amount_gross":
			n.AmountGross = value
		case "signature":
			n.Signature = value
		}
		n.raw = append(n.raw, param{key: key, value: value})
	}
	if n.MPaymentID == "" {
		return nil, fmt.Errorf("ITN missing m_payment_id")
	}
	return n, nil
}

// VerifySignature recomputes the md5 over every posted field except the
// signature itself and compares.
func (p *PayFast) VerifySignature(n *Notification) bool {
	var params []param
	for _, kv := range n.raw {
		if kv.key == "signature" {
			continue
		}
		params = append(params, kv)
	}
	return p.sign(params) == n.Signature
}
