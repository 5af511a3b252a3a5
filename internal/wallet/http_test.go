package wallet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	walletdomain "github.com/skystack/fleetbill/internal/wallet/domain"
	"github.com/stretchr/testify/require"
)

type stubWalletSvc struct {
	wallet walletdomain.Wallet
	err    error

	creditedOrg    snowflake.ID
	creditedAmount decimal.Decimal
}

func (s *stubWalletSvc) Credit(_ context.Context, orgID snowflake.ID, amount decimal.Decimal) (walletdomain.Wallet, error) {
	s.creditedOrg = orgID
	s.creditedAmount = amount
	return s.wallet, s.err
}

func (s *stubWalletSvc) GetByOrg(context.Context, snowflake.ID) (walletdomain.Wallet, error) {
	return s.wallet, s.err
}

func serveWallet(t *testing.T, svc walletdomain.Service, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(svc).RegisterRoutes(router)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestCreditEndpoint(t *testing.T) {
	balance, err := decimal.NewFromString("26.50")
	require.NoError(t, err)
	svc := &stubWalletSvc{wallet: walletdomain.Wallet{Balance: balance, Currency: "USD"}}

	w := serveWallet(t, svc, http.MethodPost, "/v1/billing/wallets/123456789/credit", `{"amount":"25"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, svc.creditedAmount.Equal(decimal.NewFromInt(25)))
	require.Equal(t, snowflake.ID(123456789), svc.creditedOrg)
}

func TestCreditEndpointRejectsBadInput(t *testing.T) {
	svc := &stubWalletSvc{}

	w := serveWallet(t, svc, http.MethodPost, "/v1/billing/wallets/not-a-snowflake/credit", `{"amount":"25"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = serveWallet(t, svc, http.MethodPost, "/v1/billing/wallets/123456789/credit", `{"amount":"lots"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = serveWallet(t, svc, http.MethodPost, "/v1/billing/wallets/123456789/credit", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreditEndpointUnknownWallet(t *testing.T) {
	svc := &stubWalletSvc{err: walletdomain.ErrWalletNotFound}

	w := serveWallet(t, svc, http.MethodPost, "/v1/billing/wallets/123456789/credit", `{"amount":"25"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "wallet_not_found")
}

func TestGetWalletEndpoint(t *testing.T) {
	balance, err := decimal.NewFromString("9.70")
	require.NoError(t, err)
	svc := &stubWalletSvc{wallet: walletdomain.Wallet{Balance: balance, Currency: "USD"}}

	w := serveWallet(t, svc, http.MethodGet, "/v1/billing/wallets/123456789", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = serveWallet(t, &stubWalletSvc{err: walletdomain.ErrWalletNotFound}, http.MethodGet, "/v1/billing/wallets/123456789", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}
