package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	declModels "etatcivil/internal/declaration/models"
	declService "etatcivil/internal/declaration/service"
	declStore "etatcivil/internal/declaration/store"
	"etatcivil/internal/payment/mocks"
	"etatcivil/internal/payment/models"
	"etatcivil/internal/payment/service"
	"etatcivil/internal/payment/store"
	"etatcivil/internal/platform/database"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/requestcontext"
	"etatcivil/pkg/testutil"
)

const secret = "whsec_test"

type fixture struct {
	router       http.Handler
	gateway      *mocks.MockGateway
	declarations *declService.Service
	declStore    *declStore.InMemoryDeclarations
	ctx          context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	payments := store.NewInMemoryPayments()
	f := &fixture{
		gateway:   mocks.NewMockGateway(gomock.NewController(t)),
		declStore: declStore.NewInMemoryDeclarations(),
		ctx:       requestcontext.WithTime(context.Background(), time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)),
	}
	f.declarations = declService.New(f.declStore, payments, database.NewMemoryTx(), declService.Fee{Amount: 1000, Currency: "xof"})
	svc := service.New(payments, f.gateway, service.Config{Currency: "xof", DefaultAmount: 1000},
		service.WithRequests(f.declarations), service.WithLogger(logger))

	r := chi.NewRouter()
	New(svc, secret, logger).Register(r)
	f.router = r
	return f
}

func (f *fixture) declaration(t *testing.T, citizenID id.UserID) *declModels.Declaration {
	t.Helper()
	d, err := f.declarations.Create(f.ctx, citizenID, &declModels.CreateRequest{
		ChildFirstName: "Fatou",
		ChildLastName:  "Ndiaye",
		ChildGender:    "F",
		BirthDate:      "2025-03-30",
		BirthPlace:     "Dakar",
		FatherName:     "Mamadou Ndiaye",
		MotherName:     "Aminata Sow",
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) checkout(t *testing.T, citizenID id.UserID, d *declModels.Declaration, sessionID string) {
	t.Helper()
	f.gateway.EXPECT().CreateCheckout(gomock.Any(), gomock.Any()).
		Return(&models.GatewaySession{ID: sessionID, URL: "https://checkout/" + sessionID}, nil)
	rr := testutil.DoRequest(f.router, testutil.AsCitizen(testutil.NewJSONRequest(t, http.MethodPost, "/payments/session",
		map[string]any{"requestId": d.ID.String()}), citizenID))
	testutil.AssertStatus(t, rr, http.StatusOK)
	out := testutil.DecodeData[models.Checkout](t, rr)
	assert.Equal(t, sessionID, out.SessionID)
	assert.Equal(t, d.Payment.ID.String(), out.PaymentID)
}

func TestPollPendingThenPaid(t *testing.T) {
	f := newFixture(t)
	citizenID := testutil.NewUserID()
	d := f.declaration(t, citizenID)
	f.checkout(t, citizenID, d, "cs_1")

	ok := testutil.Given(t, "the gateway has not captured the payment", func(t *testing.T) {
		f.gateway.EXPECT().GetSession(gomock.Any(), "cs_1").Return(&models.GatewaySession{ID: "cs_1"}, nil)

		rr := testutil.DoRequest(f.router, testutil.AsCitizen(testutil.NewRequest(t, http.MethodGet, "/payments/status?session_id=cs_1"), citizenID))
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, models.PollPending, testutil.DecodeData[models.StatusResult](t, rr).Status)

		stored, err := f.declStore.FindByID(f.ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusPending, stored.Status)
	})
	if !ok {
		return
	}

	ok = testutil.When(t, "the gateway reports the session paid", func(t *testing.T) {
		f.gateway.EXPECT().GetSession(gomock.Any(), "cs_1").Return(&models.GatewaySession{ID: "cs_1", Paid: true}, nil)

		rr := testutil.DoRequest(f.router, testutil.AsCitizen(testutil.NewRequest(t, http.MethodGet, "/payments/status?session_id=cs_1"), citizenID))
		testutil.AssertStatus(t, rr, http.StatusOK)
		out := testutil.DecodeData[models.StatusResult](t, rr)
		assert.Equal(t, models.PollCompleted, out.Status)
		assert.Equal(t, models.StatusCompleted, out.Payment.Status)
	})
	if !ok {
		return
	}

	testutil.Then(t, "the declaration is in processing", func(t *testing.T) {
		stored, err := f.declStore.FindByID(f.ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusInProgress, stored.Status)
	})
	testutil.And(t, "no agent is assigned", func(t *testing.T) {
		stored, err := f.declStore.FindByID(f.ctx, d.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.AgentID)
	})
}

func TestStatusErrors(t *testing.T) {
	f := newFixture(t)
	citizenID := testutil.NewUserID()

	rr := testutil.DoRequest(f.router, testutil.AsCitizen(testutil.NewRequest(t, http.MethodGet, "/payments/status"), citizenID))
	env := testutil.AssertFailure(t, rr, http.StatusBadRequest)
	assert.Equal(t, "session_id", env.Field)

	rr = testutil.DoRequest(f.router, testutil.AsCitizen(testutil.NewRequest(t, http.MethodGet, "/payments/status?session_id=cs_missing"), citizenID))
	testutil.AssertFailure(t, rr, http.StatusNotFound)
}

func TestSessionOnForeignRequest(t *testing.T) {
	f := newFixture(t)
	d := f.declaration(t, testutil.NewUserID())

	rr := testutil.DoRequest(f.router, testutil.AsCitizen(testutil.NewJSONRequest(t, http.MethodPost, "/payments/session",
		map[string]any{"requestId": d.ID.String()}), testutil.NewUserID()))
	testutil.AssertFailure(t, rr, http.StatusNotFound)
}

func TestWebhook(t *testing.T) {
	f := newFixture(t)
	citizenID := testutil.NewUserID()
	d := f.declaration(t, citizenID)
	f.checkout(t, citizenID, d, "cs_hook")

	t.Run("wrong secret", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/payments/webhook", map[string]string{"sessionId": "cs_hook"})
		req.Header.Set(WebhookSecretHeader, "guess")
		testutil.AssertFailure(t, testutil.DoRequest(f.router, req), http.StatusUnauthorized)

		stored, _ := f.declStore.FindByID(f.ctx, d.ID)
		assert.Equal(t, workflow.StatusPending, stored.Status)
	})

	t.Run("unpaid session changes nothing", func(t *testing.T) {
		f.gateway.EXPECT().GetSession(gomock.Any(), "cs_hook").Return(&models.GatewaySession{ID: "cs_hook"}, nil)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/payments/webhook", map[string]string{"sessionId": "cs_hook"})
		req.Header.Set(WebhookSecretHeader, secret)
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		out := testutil.DecodeData[models.StatusResult](t, rr)
		assert.Equal(t, models.PollPending, out.Status)
		assert.Equal(t, models.StatusPending, out.Payment.Status)

		stored, _ := f.declStore.FindByID(f.ctx, d.ID)
		assert.Equal(t, workflow.StatusPending, stored.Status)
	})

	t.Run("replayed callback is a no-op", func(t *testing.T) {
		f.gateway.EXPECT().GetSession(gomock.Any(), "cs_hook").Return(&models.GatewaySession{ID: "cs_hook", Paid: true}, nil)
		for range 2 {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/payments/webhook", map[string]string{"sessionId": "cs_hook"})
			req.Header.Set(WebhookSecretHeader, secret)
			rr := testutil.DoRequest(f.router, req)
			testutil.AssertStatus(t, rr, http.StatusOK)
			assert.Equal(t, models.PollCompleted, testutil.DecodeData[models.StatusResult](t, rr).Status)
		}
		stored, _ := f.declStore.FindByID(f.ctx, d.ID)
		assert.Equal(t, workflow.StatusInProgress, stored.Status)
	})
}

func TestAdminLedger(t *testing.T) {
	f := newFixture(t)
	f.declaration(t, testutil.NewUserID())

	rr := testutil.DoRequest(f.router, testutil.AsAdmin(testutil.NewRequest(t, http.MethodGet, "/admin/payments"), testutil.NewUserID()))
	testutil.AssertStatus(t, rr, http.StatusOK)
	list := testutil.DecodeData[[]models.Payment](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1000), list[0].Amount)

	rr = testutil.DoRequest(f.router, testutil.AsAdmin(testutil.NewRequest(t, http.MethodGet, "/admin/payments/export"), testutil.NewUserID()))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Body.Bytes())

	rr = testutil.DoRequest(f.router, testutil.AsAgent(testutil.NewRequest(t, http.MethodGet, "/admin/payments"), testutil.NewUserID()))
	testutil.AssertFailure(t, rr, http.StatusForbidden)
}
