package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-marketplace/controllers"
	"go-marketplace/lifecycle"
	"go-marketplace/models"
	"go-marketplace/pricing"
	"go-marketplace/repository"
	"go-marketplace/routes"
	"go-marketplace/utils"
)

var testSecret = []byte("controller-test-secret")

type sentMail struct {
	to, subject string
}

type recordingMailer struct {
	sent chan sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, _ string) error {
	m.sent <- sentMail{to: to, subject: subject}
	return nil
}

type harness struct {
	t      *testing.T
	store  *repository.Store
	router *mux.Router
	mailer *recordingMailer
}

func catalogue() []models.Product {
	return []models.Product{
		{ID: "p1", SellerID: "s1", Title: "Kurta", Price: models.Rupees(500), Mrp: models.Rupees(800), Stock: 5},
		{ID: "p2", SellerID: "s2", Title: "Dupatta", Price: models.Rupees(300), Mrp: models.Rupees(300), Stock: 20},
		{ID: "p3", SellerID: "s1", Title: "Jutti", Price: models.Rupees(100), Mrp: models.Rupees(150), Stock: 0},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := repository.NewMemoryStore(catalogue()...)
	coupons, err := pricing.ParseCoupons("SAVE10:percent:10,FLAT100:flat:100")
	require.NoError(t, err)
	mailer := &recordingMailer{sent: make(chan sentMail, 8)}

	cfg := pricing.DefaultConfig()
	reconciler := lifecycle.NewReconciler(lifecycle.Policy{}, log)
	router := mux.NewRouter()
	routes.RegisterRoutes(router, routes.Controllers{
		Products:  controllers.NewProductController(store.Products, log),
		Carts:     controllers.NewCartController(store, cfg, log),
		Addresses: controllers.NewAddressController(store.Addresses, log),
		Orders:    controllers.NewOrderController(store, cfg, coupons, reconciler, mailer, log),
	}, testSecret)

	return &harness{t: t, store: store, router: router, mailer: mailer}
}

func (h *harness) token(id string, role models.Role) string {
	h.t.Helper()
	tok, err := utils.GenerateJWT(testSecret, id, id+"@example.com", role, time.Hour)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var e utils.ErrorResponse
	decode(t, rec, &e)
	return e
}
