package wallet

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ms-scanner/internal/codes"
	"ms-scanner/internal/models"
)

// Issuer signs "save to Google Wallet" links for registrations. The pass
// binary itself (and the Apple .pkpass equivalent) is produced by external
// tooling; this package only emits the signed payloads those tools and the
// wallet apps consume.
type Issuer struct {
	IssuerID    string
	IssuerEmail string
	PrivateKey  *rsa.PrivateKey
	Codec       *codes.Codec
}

func NewIssuer(issuerID, issuerEmail string, privateKeyPEM []byte, codec *codes.Codec) (*Issuer, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet signing key: %w", err)
	}
	return &Issuer{IssuerID: issuerID, IssuerEmail: issuerEmail, PrivateKey: key, Codec: codec}, nil
}

type localizedString struct {
	DefaultValue struct {
		Language string `json:"language"`
		Value    string `json:"value"`
	} `json:"defaultValue"`
}

func localized(value string) localizedString {
	var s localizedString
	s.DefaultValue.Language = "fr"
	s.DefaultValue.Value = value
	return s
}

type barcode struct {
	Type          string `json:"type"`
	Value         string `json:"value"`
	AlternateText string `json:"alternateText"`
}

type eventTicketObject struct {
	ID               string          `json:"id"`
	ClassID          string          `json:"classId"`
	State            string          `json:"state"`
	TicketHolderName string          `json:"ticketHolderName"`
	TicketNumber     string          `json:"ticketNumber"`
	EventName        localizedString `json:"eventName"`
	TicketType       localizedString `json:"ticketType"`
	Barcode          barcode         `json:"barcode"`
}

// SaveURL builds the Google Wallet save link for a registration: an RS256
// JWT over one eventTicketObject whose barcode is the stripped signed code,
// so a wallet pass scans exactly like a printed ticket.
func (i *Issuer) SaveURL(reg *models.Registration) (string, error) {
	if reg.Event == nil || reg.Category == nil {
		return "", errors.New("registration must be loaded with its event and category")
	}

	state := "ACTIVE"
	if reg.Canceled {
		state = "INACTIVE"
	}

	object := eventTicketObject{
		ID:               fmt.Sprintf("%s.%s", i.IssuerID, reg.Numero),
		ClassID:          fmt.Sprintf("%s.%s", i.IssuerID, reg.Event.GoogleWalletClassID),
		State:            state,
		TicketHolderName: reg.FullName,
		TicketNumber:     reg.Numero,
		EventName:        localized(reg.Event.Name),
		TicketType:       localized(reg.Category.Name),
		Barcode: barcode{
			Type:          "QR_CODE",
			Value:         i.Codec.SignStripped(reg.ID),
			AlternateText: "Billet " + reg.Numero,
		},
	}

	claims := jwt.MapClaims{
		"iss": i.IssuerEmail,
		"aud": "google",
		"typ": "savetowallet",
		"iat": time.Now().Unix(),
		"payload": map[string]any{
			"eventTicketObjects": []eventTicketObject{object},
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign wallet token: %w", err)
	}

	return "https://pay.google.com/gp/v/save/" + token, nil
}

// NewDownloadToken mints the per-registration token gating pass downloads.
func NewDownloadToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// DownloadPath is the route a registration's Apple pass is served from,
// guessable only with the wallet token.
func DownloadPath(reg *models.Registration) string {
	return fmt.Sprintf("/wallet/%d/%s", reg.ID, reg.WalletToken)
}
