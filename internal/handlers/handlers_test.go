package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/quillpost/apiserver/internal/logging"
	"github.com/quillpost/apiserver/internal/services"
	"github.com/quillpost/apiserver/internal/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testCookieName = "sid"

type testEnv struct {
	router   http.Handler
	sessions *services.SessionManager
	users    *services.UserService
}

// testRepos lets a test swap in its own repositories and session secret;
// zero fields get the in-memory ones and a fixed secret.
type testRepos struct {
	users    services.UserRepository
	posts    services.PostRepository
	sessions services.SessionRepository
	secret   []byte
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, testRepos{})
}

func newTestEnvWith(t *testing.T, repos testRepos) *testEnv {
	t.Helper()

	if repos.users == nil {
		repos.users = store.NewMemoryUserRepository()
	}
	if repos.posts == nil {
		repos.posts = store.NewMemoryPostRepository()
	}
	if repos.sessions == nil {
		repos.sessions = store.NewMemorySessionRepository()
	}
	if repos.secret == nil {
		repos.secret = []byte("test-secret")
	}

	logger := logging.Discard()
	users := services.NewUserService(repos.users, bcrypt.MinCost)
	sessions := services.NewSessionManager(repos.sessions, 7*24*time.Hour, repos.secret, logger)
	posts := services.NewPostService(repos.posts, nil, logger)

	r := chi.NewRouter()
	r.Use(LoadPrincipal(sessions, testCookieName, logger))
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, NewAuthHandler(users, sessions, CookieSettings{Name: testCookieName}, logger))
	})
	r.Route("/posts", func(r chi.Router) {
		PostRouter(r, NewPostHandler(posts, logger), RequireAuth)
	})

	return &testEnv{router: r, sessions: sessions, users: users}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// signUpAndIn registers a user and returns the session cookie from sign-in.
func (e *testEnv) signUpAndIn(t *testing.T, userID, password, name string) *http.Cookie {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"user_id": userID, "password": password, "name": name,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/auth/signin", map[string]string{
		"user_id": userID, "password": password,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", testCookieName)
	return nil
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
