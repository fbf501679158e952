package wallet_api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-scanner/internal/models"
	"ms-scanner/internal/wallet"
)

// RegistrationStore is the narrow lookup the wallet routes need.
type RegistrationStore interface {
	GetRegistrationByWalletToken(ctx context.Context, id int64, token string) (*models.Registration, error)
}

// Handler serves the per-registration wallet routes. Every route is gated by
// the registration's wallet token: without it a registration id alone leads
// nowhere.
type Handler struct {
	Store  RegistrationStore
	Issuer *wallet.Issuer // nil when Google Wallet is not configured
	// PassDir holds the pre-generated Apple .pkpass files, one per
	// registration id. Generation happens outside this service.
	PassDir string
}

func NewHandler(store RegistrationStore, issuer *wallet.Issuer, passDir string) *Handler {
	return &Handler{Store: store, Issuer: issuer, PassDir: passDir}
}

func (h *Handler) registration(w http.ResponseWriter, r *http.Request) *models.Registration {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return nil
	}

	reg, err := h.Store.GetRegistrationByWalletToken(r.Context(), id, chi.URLParam(r, "token"))
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	return reg
}

// GetPass handles GET /wallet/{id}/{token}: streams the registration's Apple
// pass as an attachment.
func (h *Handler) GetPass(w http.ResponseWriter, r *http.Request) {
	reg := h.registration(w, r)
	if reg == nil {
		return
	}

	f, err := os.Open(filepath.Join(h.PassDir, fmt.Sprintf("%d.pkpass", reg.ID)))
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.apple.pkpass")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"ticket_%s.pkpass\"", reg.Numero))
	io.Copy(w, f)
}

// GetGooglePass handles GET /wallet/{id}/{token}/google: redirects to the
// signed "save to Google Wallet" link for the registration.
func (h *Handler) GetGooglePass(w http.ResponseWriter, r *http.Request) {
	if h.Issuer == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	reg := h.registration(w, r)
	if reg == nil {
		return
	}

	saveURL, err := h.Issuer.SaveURL(reg)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, saveURL, http.StatusFound)
}
