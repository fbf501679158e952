package wallet_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-scanner/internal/codes"
	"ms-scanner/internal/models"
	"ms-scanner/internal/wallet"
)

func testKeyPEM(t *testing.T) ([]byte, *rsa.PrivateKey) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return pemBytes, key
}

func testRegistration() *models.Registration {
	return &models.Registration{
		ID:       1,
		EventID:  10,
		Numero:   "A-0042",
		FullName: "Ada Lovelace",
		Event: &models.TicketEvent{
			ID:                  10,
			Name:                "GopherCon",
			GoogleWalletClassID: "gophercon-2026",
		},
		Category: &models.TicketCategory{ID: 3, EventID: 10, Name: "Standard"},
	}
}

func TestSaveURL(t *testing.T) {
	pemBytes, key := testKeyPEM(t)
	codec := codes.NewCodec([]byte("prout"))

	issuer, err := wallet.NewIssuer("3388000000012345678", "svc@project.iam.gserviceaccount.com", pemBytes, codec)
	require.NoError(t, err)

	saveURL, err := issuer.SaveURL(testRegistration())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(saveURL, "https://pay.google.com/gp/v/save/"))

	rawToken := strings.TrimPrefix(saveURL, "https://pay.google.com/gp/v/save/")

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, "svc@project.iam.gserviceaccount.com", claims["iss"])
	assert.Equal(t, "google", claims["aud"])
	assert.Equal(t, "savetowallet", claims["typ"])

	payload := claims["payload"].(map[string]interface{})
	objects := payload["eventTicketObjects"].([]interface{})
	require.Len(t, objects, 1)

	object := objects[0].(map[string]interface{})
	assert.Equal(t, "3388000000012345678.A-0042", object["id"])
	assert.Equal(t, "3388000000012345678.gophercon-2026", object["classId"])
	assert.Equal(t, "ACTIVE", object["state"])
	assert.Equal(t, "Ada Lovelace", object["ticketHolderName"])

	// The pass barcode must scan exactly like a printed ticket
	barcode := object["barcode"].(map[string]interface{})
	assert.Equal(t, "QR_CODE", barcode["type"])
	assert.Equal(t, codec.SignStripped(1), barcode["value"])

	id, err := codec.DecodeAndVerify(barcode["value"].(string))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestSaveURL_CanceledRegistration(t *testing.T) {
	pemBytes, key := testKeyPEM(t)
	codec := codes.NewCodec([]byte("prout"))

	issuer, err := wallet.NewIssuer("3388000000012345678", "svc@project.iam.gserviceaccount.com", pemBytes, codec)
	require.NoError(t, err)

	reg := testRegistration()
	reg.Canceled = true

	saveURL, err := issuer.SaveURL(reg)
	require.NoError(t, err)

	rawToken := strings.TrimPrefix(saveURL, "https://pay.google.com/gp/v/save/")
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	require.NoError(t, err)

	payload := claims["payload"].(map[string]interface{})
	object := payload["eventTicketObjects"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "INACTIVE", object["state"])
}

func TestSaveURL_RequiresRelations(t *testing.T) {
	pemBytes, _ := testKeyPEM(t)
	codec := codes.NewCodec([]byte("prout"))

	issuer, err := wallet.NewIssuer("3388000000012345678", "svc@project.iam.gserviceaccount.com", pemBytes, codec)
	require.NoError(t, err)

	_, err = issuer.SaveURL(&models.Registration{ID: 1})
	assert.Error(t, err)
}

func TestNewIssuer_BadKey(t *testing.T) {
	codec := codes.NewCodec([]byte("prout"))
	_, err := wallet.NewIssuer("id", "email", []byte("not a pem key"), codec)
	assert.Error(t, err)
}

func TestNewDownloadToken(t *testing.T) {
	token := wallet.NewDownloadToken()
	assert.Len(t, token, 32)
	assert.NotContains(t, token, "-")
	assert.NotEqual(t, token, wallet.NewDownloadToken())
}

func TestDownloadPath(t *testing.T) {
	reg := &models.Registration{ID: 7, WalletToken: "abc123"}
	assert.Equal(t, "/wallet/7/abc123", wallet.DownloadPath(reg))
}
