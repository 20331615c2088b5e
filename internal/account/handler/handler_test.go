package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etatcivil/internal/account/models"
	"etatcivil/internal/account/passwords"
	"etatcivil/internal/account/service"
	"etatcivil/internal/account/store"
	"etatcivil/internal/session"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/testutil"
)

type fixture struct {
	router   http.Handler
	citizens *store.InMemoryCitizens
	users    *store.InMemoryUsers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	citizens := store.NewInMemoryCitizens()
	users := store.NewInMemoryUsers()
	tokens := session.NewJWTService("test-signing-key-0123456789abcdef", "etatcivil-test", time.Hour)
	svc := service.New(citizens, users, tokens, service.WithLogger(logger))

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return &fixture{router: r, citizens: citizens, users: users}
}

func (f *fixture) seedAgent(t *testing.T, email string) *models.User {
	t.Helper()
	hash, err := passwords.Hash("motdepasse")
	require.NoError(t, err)
	u, err := models.NewUser(id.UserID(uuid.New()), "Moussa", "Ba", email, id.RoleAgent, hash, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	testutil.Given(t, "a new citizen registers", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]string{
			"firstName": " Awa ",
			"lastName":  "Diop",
			"email":     "awa@example.sn",
			"password":  "motdepasse",
		}))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		sess := testutil.DecodeData[models.Session](t, rr)
		assert.Equal(t, "Awa", sess.User.FirstName)
		assert.NotEmpty(t, sess.Token)

		testutil.When(t, "the same address registers again", func(t *testing.T) {
			rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]string{
				"firstName": "Awa", "lastName": "Diop", "email": "awa@example.sn", "password": "motdepasse",
			}))
			testutil.Then(t, "it conflicts", func(t *testing.T) {
				testutil.AssertFailure(t, rr, http.StatusConflict)
			})
		})

		testutil.When(t, "the citizen logs in", func(t *testing.T) {
			rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
				"email": "awa@example.sn", "password": "motdepasse",
			}))
			testutil.Then(t, "a session is returned", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				sess := testutil.DecodeData[models.Session](t, rr)
				assert.Equal(t, id.RoleCitizen, sess.User.Role)
			})
		})
	})
}

func TestRegisterMissingField(t *testing.T) {
	f := newFixture(t)
	rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]string{
		"firstName": "Awa", "email": "awa@example.sn", "password": "motdepasse",
	}))
	env := testutil.AssertFailure(t, rr, http.StatusBadRequest)
	assert.Equal(t, "lastName", env.Field)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.seedAgent(t, "agent@mairie.sn")

	rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "agent@mairie.sn", "password": "pas-le-bon",
	}))
	testutil.AssertFailure(t, rr, http.StatusUnauthorized)
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	agent := f.seedAgent(t, "agent@mairie.sn")

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/auth/me"))
	testutil.AssertFailure(t, rr, http.StatusUnauthorized)

	rr = testutil.DoRequest(f.router, testutil.AsAgent(testutil.NewRequest(t, http.MethodGet, "/auth/me"), agent.ID))
	testutil.AssertStatus(t, rr, http.StatusOK)
	profile := testutil.DecodeData[models.Profile](t, rr)
	assert.Equal(t, "agent@mairie.sn", profile.Email)
}

func TestAdminRoutesAreAdminOnly(t *testing.T) {
	f := newFixture(t)
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/admin/users"},
		{http.MethodPost, "/admin/users"},
		{http.MethodPatch, "/admin/users/" + uuid.NewString() + "/status"},
		{http.MethodGet, "/admin/citizens"},
		{http.MethodPatch, "/admin/citizens/" + uuid.NewString() + "/status"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, rt.method, rt.path, map[string]string{}))
			testutil.AssertFailure(t, rr, http.StatusUnauthorized)

			rr = testutil.DoRequest(f.router, testutil.AsCitizen(testutil.NewJSONRequest(t, rt.method, rt.path, map[string]string{}), testutil.NewUserID()))
			testutil.AssertFailure(t, rr, http.StatusForbidden)

			rr = testutil.DoRequest(f.router, testutil.AsAgent(testutil.NewJSONRequest(t, rt.method, rt.path, map[string]string{}), testutil.NewUserID()))
			testutil.AssertFailure(t, rr, http.StatusForbidden)
		})
	}
	users, err := f.users.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestAdminCreatesAndDeactivatesAgent(t *testing.T) {
	f := newFixture(t)
	adminID := testutil.NewUserID()

	rr := testutil.DoRequest(f.router, testutil.AsAdmin(testutil.NewJSONRequest(t, http.MethodPost, "/admin/users", map[string]string{
		"email": "fatou.sall@mairie.sn", "password": "motdepasse", "role": "AGENT",
	}), adminID))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	created := testutil.DecodeData[models.User](t, rr)
	assert.Equal(t, "Fatou", created.FirstName)

	path := "/admin/users/" + created.ID.String() + "/status"

	rr = testutil.DoRequest(f.router, testutil.AsAdmin(testutil.NewJSONRequest(t, http.MethodPatch, path, map[string]string{"status": "paused"}), adminID))
	testutil.AssertFailure(t, rr, http.StatusBadRequest)

	rr = testutil.DoRequest(f.router, testutil.AsAdmin(testutil.NewJSONRequest(t, http.MethodPatch, path, map[string]string{"status": "inactive"}), adminID))
	testutil.AssertStatus(t, rr, http.StatusOK)
	updated := testutil.DecodeData[models.User](t, rr)
	assert.Equal(t, workflow.AccountInactive, updated.Status)

	rr = testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "fatou.sall@mairie.sn", "password": "motdepasse",
	}))
	testutil.AssertFailure(t, rr, http.StatusForbidden)
}

func TestCitizenStatusUnknownID(t *testing.T) {
	f := newFixture(t)
	rr := testutil.DoRequest(f.router, testutil.AsAdmin(testutil.NewJSONRequest(t, http.MethodPatch,
		"/admin/citizens/"+uuid.NewString()+"/status", map[string]string{"status": "inactive"}), testutil.NewUserID()))
	testutil.AssertFailure(t, rr, http.StatusNotFound)
}

func TestThrottleWrapsPublicRoutesOnly(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := session.NewJWTService("test-signing-key-0123456789abcdef", "etatcivil-test", time.Hour)
	svc := service.New(store.NewInMemoryCitizens(), store.NewInMemoryUsers(), tokens, service.WithLogger(logger))
	var throttled []string
	throttle := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			throttled = append(throttled, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	r := chi.NewRouter()
	New(svc, logger, WithThrottle(throttle)).Register(r)

	testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{"email": "x@example.sn", "password": "nope"}))
	testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]string{}))
	testutil.DoRequest(r, testutil.AsCitizen(testutil.NewRequest(t, http.MethodGet, "/auth/me"), testutil.NewUserID()))

	assert.Equal(t, []string{"/auth/login", "/auth/register"}, throttled)
}
