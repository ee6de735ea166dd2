package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/pkg/helpers"
)

const testBotToken = "12345:bot-token"

type stubResponseHandler struct {
	handleError error
}

func (s *stubResponseHandler) WriteSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.WriteHeader(status)
}

func (s *stubResponseHandler) WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.WriteHeader(status)
}

func (s *stubResponseHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	s.handleError = err
	w.WriteHeader(http.StatusUnauthorized)
}

type stubVerifier struct {
	id  models.Identity
	err error
}

func (s stubVerifier) Verify(r *http.Request) (models.Identity, error) {
	return s.id, s.err
}

// signedInitData builds initData the way the Telegram client does.
func signedInitData(botToken string, values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	signed := url.Values{}
	for k := range values {
		signed.Set(k, values.Get(k))
	}
	signed.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return signed.Encode()
}

func initDataAt(authDate time.Time) url.Values {
	return url.Values{
		"auth_date": {strconv.FormatInt(authDate.Unix(), 10)},
		"query_id":  {"AAH"},
		"user":      {`{"id":42,"first_name":"Ann","last_name":"Lee","photo_url":"https://t.me/a.jpg"}`},
	}
}

func TestTelegramVerifierAcceptsSignedInitData(t *testing.T) {
	now := time.Now()
	v := NewTelegramVerifier(testBotToken, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TelegramInitDataHeader, signedInitData(testBotToken, initDataAt(now.Add(-time.Minute))))

	id, err := v.Verify(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UID != "tg:42" || id.DisplayName() != "Ann Lee" || id.Avatar != "https://t.me/a.jpg" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestTelegramVerifierRejects(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name     string
		initData string
	}{
		{"missing header", ""},
		{"wrong bot token", signedInitData("other:token", initDataAt(now))},
		{"expired", signedInitData(testBotToken, initDataAt(now.Add(-2*time.Hour)))},
		{"unsigned", initDataAt(now).Encode()},
		{"tampered", strings.Replace(signedInitData(testBotToken, initDataAt(now)), "query_id=AAH", "query_id=BBB", 1)},
		{"no user", signedInitData(testBotToken, url.Values{"auth_date": {strconv.FormatInt(now.Unix(), 10)}})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := NewTelegramVerifier(testBotToken, time.Hour)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.initData != "" {
				req.Header.Set(TelegramInitDataHeader, tc.initData)
			}
			_, err := v.Verify(req)
			var unauth *errs.UnauthenticatedError
			if !errors.As(err, &unauth) {
				t.Fatalf("expected UnauthenticatedError, got %v", err)
			}
		})
	}
}

func TestTelegramIdentityFallsBackToUsername(t *testing.T) {
	now := time.Now()
	v := NewTelegramVerifier(testBotToken, 0)

	values := url.Values{
		"auth_date": {strconv.FormatInt(now.Add(-48*time.Hour).Unix(), 10)},
		"user":      {`{"id":7,"username":"bo_k"}`},
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TelegramInitDataHeader, signedInitData(testBotToken, values))

	id, err := v.Verify(req)
	if err != nil {
		t.Fatalf("unexpected error with age check disabled: %v", err)
	}
	if id.UID != "tg:7" || id.DisplayName() != "bo_k" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestAuthMiddlewareStoresIdentity(t *testing.T) {
	rh := &stubResponseHandler{}
	m := NewMiddleware(stubVerifier{id: models.Identity{UID: "tg:7", FirstName: "Bo"}}, rh)

	var gotUID string
	var gotID models.Identity
	h := m.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID = UID(r.Context())
		gotID = Identity(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(helpers.TestCtx())
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotUID != "tg:7" || gotID.FirstName != "Bo" {
		t.Fatalf("identity not stored: uid=%q id=%+v", gotUID, gotID)
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	rh := &stubResponseHandler{}
	m := NewMiddleware(stubVerifier{err: errs.NewUnauthenticatedError("nope")}, rh)

	called := false
	h := m.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(helpers.TestCtx()))

	if called {
		t.Fatalf("next handler must not run")
	}
	if rr.Code != http.StatusUnauthorized || rh.handleError == nil {
		t.Fatalf("expected HandleError with 401, got %d", rr.Code)
	}
}
