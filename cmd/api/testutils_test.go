package main

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/liliang-cn/moviematic/internal/auth"
	"github.com/liliang-cn/moviematic/internal/data"
	"github.com/liliang-cn/moviematic/internal/jsonlog"
	"github.com/liliang-cn/moviematic/internal/storage"
)

const testSecret = "test-secret"

var testTime = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type sentMail struct {
	recipient string
	template  string
	data      any
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(recipient, templateFile string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{recipient, templateFile, data})
	return nil
}

func newTestApplication(t *testing.T) (*application, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	tokens, err := auth.NewManager(testSecret)
	require.NoError(t, err)

	store, err := storage.NewDisk(t.TempDir(), "/uploads")
	require.NoError(t, err)

	cfg := defaultConfig()
	cfg.Env = "testing"
	cfg.Limiter.Enabled = false

	app := &application{
		config:  cfg,
		logger:  jsonlog.New(io.Discard, jsonlog.LevelOff),
		models:  data.NewModels(db),
		mailer:  &fakeMailer{},
		tokens:  tokens,
		storage: store,
	}

	return app, mock
}

var userCols = []string{"id", "created_at", "first_name", "last_name", "email", "password_hash", "role", "is_active", "version"}

type testUser struct {
	id       int64
	role     string
	active   bool
	password string
}

func (u testUser) row(t *testing.T) *sqlmock.Rows {
	t.Helper()

	hash := []byte("not-a-real-hash")
	if u.password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.MinCost)
		require.NoError(t, err)
	}

	return sqlmock.NewRows(userCols).
		AddRow(u.id, testTime, "Ada", "Lovelace", "ada@example.com", hash, u.role, u.active, 1)
}

var (
	member = testUser{id: 2, role: data.RoleUser, active: true}
	admin  = testUser{id: 1, role: data.RoleAdmin, active: true}
)

// expectUser 认证中间件按 id 查询用户
func expectUser(t *testing.T, mock sqlmock.Sqlmock, u testUser) {
	t.Helper()
	mock.ExpectQuery(`FROM users WHERE id = \$1`).WithArgs(u.id).WillReturnRows(u.row(t))
}

func bearer(t *testing.T, app *application, userID int64) http.Header {
	t.Helper()

	pair, err := app.tokens.Issue(userID)
	require.NoError(t, err)

	h := make(http.Header)
	h.Set("Authorization", "Bearer "+pair.AuthenticationToken)
	return h
}

func send(t *testing.T, h http.Handler, method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(method, target, body)
	r.RemoteAddr = "192.0.2.1:1234"
	for k, v := range header {
		r.Header[k] = v
	}
	if body != nil && r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

// assertError 检查状态码和错误码
func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) map[string]any {
	t.Helper()

	require.Equal(t, status, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, code, body["code"])
	assert.NotNil(t, body["error"])
	return body
}

type formFile struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

func multipartBody(t *testing.T, jsonData string, files ...formFile) (io.Reader, http.Header) {
	t.Helper()

	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)

	require.NoError(t, mw.WriteField("data", jsonData))

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	header := make(http.Header)
	header.Set("Content-Type", mw.FormDataContentType())
	return buf, header
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
