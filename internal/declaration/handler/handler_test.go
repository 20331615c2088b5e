package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etatcivil/internal/declaration/models"
	"etatcivil/internal/declaration/service"
	"etatcivil/internal/declaration/store"
	paymentStore "etatcivil/internal/payment/store"
	"etatcivil/internal/platform/database"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/testutil"
)

type fixture struct {
	router http.Handler
	store  *store.InMemoryDeclarations
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewInMemoryDeclarations()
	svc := service.New(st, paymentStore.NewInMemoryPayments(), database.NewMemoryTx(),
		service.Fee{Amount: 1000, Currency: "xof"}, service.WithLogger(logger))
	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return &fixture{router: r, store: st}
}

func validBody() map[string]any {
	return map[string]any{
		"childFirstName": "Fatou",
		"childLastName":  "Ndiaye",
		"childGender":    "F",
		"birthDate":      "2025-03-30",
		"birthPlace":     "Dakar",
		"fatherName":     "Mamadou Ndiaye",
		"motherName":     "Aminata Sow",
		"documents": []map[string]string{
			{"type": "ID_CARD", "url": "https://host/x.pdf"},
		},
	}
}

func (f *fixture) submit(t *testing.T, citizenID id.UserID) models.Declaration {
	t.Helper()
	rr := testutil.DoRequest(f.router, testutil.AsCitizen(testutil.NewJSONRequest(t, http.MethodPost, "/birth-declarations", validBody()), citizenID))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	return testutil.DecodeData[models.Declaration](t, rr)
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	list, err := f.store.ListActive(context.Background(), "")
	require.NoError(t, err)
	return len(list)
}

func TestCitizenSubmitsDeclaration(t *testing.T) {
	f := newFixture(t)
	citizenID := testutil.NewUserID()

	d := f.submit(t, citizenID)

	assert.Equal(t, workflow.StatusPending, d.Status)
	require.Len(t, d.Documents, 1)
	assert.Equal(t, "ID_CARD", d.Documents[0].Type)
	assert.Equal(t, "https://host/x.pdf", d.Documents[0].URL)
	require.NotNil(t, d.Payment)
	assert.Equal(t, int64(1000), d.Payment.Amount)
	assert.Equal(t, "PENDING", d.Payment.Status.String())
	assert.Equal(t, citizenID, d.CitizenID)
}

func TestDuplicateSubmissionsAreDistinct(t *testing.T) {
	f := newFixture(t)
	citizenID := testutil.NewUserID()

	first := f.submit(t, citizenID)
	second := f.submit(t, citizenID)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, f.count(t))
}

func TestMissingFieldsAreNamed(t *testing.T) {
	required := []string{"childFirstName", "childLastName", "childGender", "birthDate", "birthPlace", "fatherName", "motherName"}
	for _, field := range required {
		t.Run(field, func(t *testing.T) {
			f := newFixture(t)
			body := validBody()
			delete(body, field)

			rr := testutil.DoRequest(f.router, testutil.AsCitizen(testutil.NewJSONRequest(t, http.MethodPost, "/birth-declarations", body), testutil.NewUserID()))
			env := testutil.AssertFailure(t, rr, http.StatusBadRequest)
			assert.Equal(t, field, env.Field)
			assert.Zero(t, f.count(t))
		})
	}
}

func TestRoleGuards(t *testing.T) {
	f := newFixture(t)
	d := f.submit(t, testutil.NewUserID())
	before := f.count(t)

	cases := []struct {
		name   string
		method string
		path   string
		as     func(*http.Request) *http.Request
		status int
	}{
		{"anonymous submit", http.MethodPost, "/birth-declarations", func(r *http.Request) *http.Request { return r }, http.StatusUnauthorized},
		{"agent submit", http.MethodPost, "/birth-declarations", func(r *http.Request) *http.Request { return testutil.AsAgent(r, testutil.NewUserID()) }, http.StatusForbidden},
		{"citizen transition", http.MethodPatch, "/agent/birth-declarations/" + d.ID.String() + "/status", func(r *http.Request) *http.Request { return testutil.AsCitizen(r, d.CitizenID) }, http.StatusForbidden},
		{"anonymous transition", http.MethodPatch, "/agent/birth-declarations/" + d.ID.String() + "/status", func(r *http.Request) *http.Request { return r }, http.StatusUnauthorized},
		{"citizen delete", http.MethodDelete, "/agent/birth-declarations/" + d.ID.String(), func(r *http.Request) *http.Request { return testutil.AsCitizen(r, d.CitizenID) }, http.StatusForbidden},
		{"agent admin delete", http.MethodDelete, "/admin/birth-declarations/" + d.ID.String(), func(r *http.Request) *http.Request { return testutil.AsAgent(r, testutil.NewUserID()) }, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := validBody()
			body["status"] = "COMPLETED"
			rr := testutil.DoRequest(f.router, tc.as(testutil.NewJSONRequest(t, tc.method, tc.path, body)))
			testutil.AssertFailure(t, rr, tc.status)
		})
	}

	assert.Equal(t, before, f.count(t))
	stored, err := f.store.FindByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, stored.Status)
}

func TestCitizenCannotReadOthersDeclaration(t *testing.T) {
	f := newFixture(t)
	d := f.submit(t, testutil.NewUserID())

	rr := testutil.DoRequest(f.router, testutil.AsCitizen(testutil.NewRequest(t, http.MethodGet, "/birth-declarations/"+d.ID.String()), testutil.NewUserID()))
	testutil.AssertFailure(t, rr, http.StatusForbidden)

	rr = testutil.DoRequest(f.router, testutil.AsCitizen(testutil.NewRequest(t, http.MethodGet, "/birth-declarations/"+d.ID.String()), d.CitizenID))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestAgentTransitions(t *testing.T) {
	f := newFixture(t)
	agentID := testutil.NewUserID()

	testutil.Given(t, "a pending declaration", func(t *testing.T) {
		d := f.submit(t, testutil.NewUserID())
		path := "/agent/birth-declarations/" + d.ID.String() + "/status"

		testutil.When(t, "the agent sends an out-of-enum status", func(t *testing.T) {
			rr := testutil.DoRequest(f.router, testutil.AsAgent(testutil.NewJSONRequest(t, http.MethodPatch, path, map[string]string{"status": "DONE"}), agentID))
			testutil.Then(t, "it is rejected and the status is unchanged", func(t *testing.T) {
				testutil.AssertFailure(t, rr, http.StatusBadRequest)
				stored, err := f.store.FindByID(context.Background(), d.ID)
				require.NoError(t, err)
				assert.Equal(t, workflow.StatusPending, stored.Status)
			})
		})

		testutil.When(t, "the agent completes it directly", func(t *testing.T) {
			rr := testutil.DoRequest(f.router, testutil.AsAgent(testutil.NewJSONRequest(t, http.MethodPatch, path, map[string]string{"status": "COMPLETED"}), agentID))
			testutil.Then(t, "the transition succeeds", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				out := testutil.DecodeData[models.Declaration](t, rr)
				assert.Equal(t, workflow.StatusCompleted, out.Status)
			})
		})
	})

	t.Run("unknown declaration", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.AsAgent(testutil.NewJSONRequest(t, http.MethodPatch,
			"/agent/birth-declarations/"+testutil.NewUserID().String()+"/status", map[string]string{"status": "REJECTED"}), agentID))
		testutil.AssertFailure(t, rr, http.StatusNotFound)
	})
}

func TestSoftDeleteHidesDeclaration(t *testing.T) {
	f := newFixture(t)
	citizenID := testutil.NewUserID()
	d := f.submit(t, citizenID)

	rr := testutil.DoRequest(f.router, testutil.AsAdmin(testutil.NewRequest(t, http.MethodDelete, "/admin/birth-declarations/"+d.ID.String()), testutil.NewUserID()))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.DoRequest(f.router, testutil.AsCitizen(testutil.NewRequest(t, http.MethodGet, "/birth-declarations/mine"), citizenID))
	testutil.AssertStatus(t, rr, http.StatusOK)
	mine := testutil.DecodeData[[]models.Declaration](t, rr)
	assert.Empty(t, mine)
}
