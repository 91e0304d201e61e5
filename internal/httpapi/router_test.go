package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datagent-dev/datagent/internal/agent"
	"github.com/datagent-dev/datagent/internal/ai"
	"github.com/datagent-dev/datagent/internal/auth"
	"github.com/datagent-dev/datagent/internal/chat"
	"github.com/datagent-dev/datagent/internal/codegen"
	"github.com/datagent-dev/datagent/internal/httpapi/handlers"
	"github.com/datagent-dev/datagent/internal/sandbox"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeClassifier struct {
	intent      codegen.Intent
	calls       int
	lastContext string
}

func (f *fakeClassifier) ClassifyIntent(_ context.Context, _, conversationContext string) codegen.Intent {
	f.calls++
	f.lastContext = conversationContext
	return f.intent
}

type fakeGen struct {
	code  string
	reply string
	err   error
}

func (g *fakeGen) PlotCode(_ context.Context, _, _, _ string) (string, error) {
	return g.code, g.err
}

func (g *fakeGen) CleaningCode(_ context.Context, _, _, _ string) (string, error) {
	return g.code, g.err
}

func (g *fakeGen) ChatReply(_ context.Context, _ string, _ []ai.Message) (string, error) {
	return g.reply, g.err
}

type fakeRunner struct {
	exec sandbox.Execution
}

func (r *fakeRunner) RunScript(_ context.Context, _ string, _ time.Duration) sandbox.Execution {
	return r.exec
}

func (r *fakeRunner) RunScriptWithFile(_ context.Context, _, _ string, _ time.Duration) sandbox.Execution {
	return r.exec
}

type fakeStore struct {
	keys []string
}

func (s *fakeStore) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	s.keys = append(s.keys, key)
	return "http://store.local/public/" + key, nil
}

func (s *fakeStore) Download(_ context.Context, key string) ([]byte, error) {
	return []byte("a,b\n1,2\n"), nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, _ []byte) (string, error) {
	return f.text, f.err
}

type testEnv struct {
	router      *gin.Engine
	repo        *chat.Repo
	classifier  *fakeClassifier
	gen         *fakeGen
	runner      *fakeRunner
	store       *fakeStore
	transcriber *fakeTranscriber
}

const testSecret = "test-secret"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&chat.Session{}, &chat.Message{}, &chat.DataVersion{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	repo := chat.NewRepo(db)

	env := &testEnv{
		repo:        repo,
		classifier:  &fakeClassifier{intent: codegen.IntentGeneral},
		gen:         &fakeGen{code: "import pandas", reply: "hello!"},
		runner:      &fakeRunner{},
		store:       &fakeStore{},
		transcriber: &fakeTranscriber{text: "plot sales by month"},
	}

	ag := agent.New(repo, env.gen, env.runner, env.store, nil)
	h := handlers.NewHandler(repo, env.classifier, ag, env.store, env.transcriber, nil)
	env.router = NewRouter(h, auth.NewVerifier(testSecret), nil, 0, "http://localhost:3000")
	return env
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + s
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func seedVersion(t *testing.T, repo *chat.Repo, sessionID string) {
	t.Helper()
	if err := repo.CreateDataVersion(context.Background(), &chat.DataVersion{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Version:   "v0",
		FileName:  "sales.csv",
		FileURL:   "http://store.local/public/" + sessionID + "/v0/sales.csv",
	}); err != nil {
		t.Fatalf("seed version: %v", err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w, body := doJSON(t, env.router, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["status"] != "ok" || body["timestamp"] == "" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAPIInfo(t *testing.T) {
	env := newTestEnv(t)
	w, body := doJSON(t, env.router, http.MethodGet, "/api", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["message"] != "Datagent API" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestChatRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	w, body := doJSON(t, env.router, http.MethodPost, "/api/chat", "", `{"sessionId":"s1","message":"hi"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
}

func TestChatMissingFields(t *testing.T) {
	env := newTestEnv(t)
	w, body := doJSON(t, env.router, http.MethodPost, "/api/chat", bearer(t, "user_1"), `{"sessionId":"s1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if body["error"] != "Missing required fields: sessionId, message" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestChatAnalysisWithData(t *testing.T) {
	env := newTestEnv(t)
	seedVersion(t, env.repo, "s1")
	env.runner.exec = sandbox.Execution{Stdout: "PLOT_SAVED", Success: true, File: []byte("png")}

	w, body := doJSON(t, env.router, http.MethodPost, "/api/chat", bearer(t, "user_1"),
		`{"sessionId":"s1","message":"plot sales by month","mode":"data-analysis"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
	if body["mode"] != "ANALYSIS" {
		t.Fatalf("mode = %v", body["mode"])
	}
	arts, ok := body["artifacts"].(map[string]any)
	if !ok || arts["imageBase64"] == "" {
		t.Fatalf("expected artifacts.imageBase64, got %v", body)
	}
	if env.classifier.calls != 0 {
		t.Fatalf("classifier must not run on a recognized mode hint, ran %d times", env.classifier.calls)
	}

	msgs, err := env.repo.ListSessionMessages(context.Background(), "s1")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != chat.RoleUser || msgs[1].Role != chat.RoleAssistant {
		t.Fatalf("expected persisted user+assistant pair, got %d messages", len(msgs))
	}
	if msgs[1].Artifacts == nil || msgs[1].Artifacts.ImageBase64 == "" {
		t.Fatalf("assistant message must carry the artifact, got %+v", msgs[1].Artifacts)
	}
}

func TestChatAnalysisWithoutData(t *testing.T) {
	env := newTestEnv(t)

	w, body := doJSON(t, env.router, http.MethodPost, "/api/chat", bearer(t, "user_1"),
		`{"sessionId":"s1","message":"plot sales by month","mode":"data-analysis"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
	if body["mode"] != "ANALYSIS" {
		t.Fatalf("mode = %v", body["mode"])
	}
	if _, present := body["artifacts"]; present {
		t.Fatalf("no artifacts expected without data, got %v", body["artifacts"])
	}
	msg, _ := body["assistantMessage"].(string)
	if !strings.Contains(msg, "upload a CSV file") {
		t.Fatalf("expected upload guidance, got %q", msg)
	}
}

func TestChatClassifiesWithoutHint(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.intent = codegen.IntentGeneral

	w, body := doJSON(t, env.router, http.MethodPost, "/api/chat", bearer(t, "user_1"),
		`{"sessionId":"s1","message":"what can you do?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
	if env.classifier.calls != 1 {
		t.Fatalf("classifier calls = %d", env.classifier.calls)
	}
	// The just-persisted user message is part of the classifier context.
	if !strings.Contains(env.classifier.lastContext, "user: what can you do?") {
		t.Fatalf("unexpected classifier context: %q", env.classifier.lastContext)
	}
	if body["mode"] != "GENERAL" || body["assistantMessage"] != "hello!" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestChatPreparationCarriesFileArtifact(t *testing.T) {
	env := newTestEnv(t)
	seedVersion(t, env.repo, "s1")
	env.runner.exec = sandbox.Execution{Stdout: "CLEANING_COMPLETE", Success: true, File: []byte("a,b\n1,2\n")}

	w, body := doJSON(t, env.router, http.MethodPost, "/api/chat", bearer(t, "user_1"),
		`{"sessionId":"s1","message":"drop empty rows","mode":"data-preparation"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
	if body["mode"] != "PREPARATION" {
		t.Fatalf("mode = %v", body["mode"])
	}
	arts, ok := body["artifacts"].(map[string]any)
	if !ok || arts["fileUrl"] == "" || arts["fileName"] != "cleaned_sales.csv" {
		t.Fatalf("expected file artifact, got %v", body)
	}
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(file); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadCreatesVersionZero(t *testing.T) {
	env := newTestEnv(t)
	buf, contentType := multipartBody(t, map[string]string{"sessionId": "s1"}, "file", "sales.csv", []byte("a,b\n1,2\n"))

	req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearer(t, "user_1"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != true || body["version"] != "v0" || body["fileName"] != "sales.csv" {
		t.Fatalf("unexpected body: %v", body)
	}

	if len(env.store.keys) != 1 || env.store.keys[0] != "s1/v0/sales.csv" {
		t.Fatalf("unexpected storage keys: %v", env.store.keys)
	}
	latest, err := env.repo.LatestDataVersion(context.Background(), "s1")
	if err != nil || latest == nil {
		t.Fatalf("latest version: %v, %v", latest, err)
	}
	if latest.Version != "v0" || latest.Description == nil || *latest.Description != "Raw uploaded data" {
		t.Fatalf("unexpected version record: %+v", latest)
	}
}

func TestUploadMissingFile(t *testing.T) {
	env := newTestEnv(t)
	buf, contentType := multipartBody(t, map[string]string{"sessionId": "s1"}, "", "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearer(t, "user_1"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestTranscribe(t *testing.T) {
	env := newTestEnv(t)
	buf, contentType := multipartBody(t, nil, "audio", "clip.wav", []byte("RIFFdata"))

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", buf)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["transcript"] != "plot sales by month" || body["language"] != "en" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestTranscribeMissingAudio(t *testing.T) {
	env := newTestEnv(t)
	w, body := doJSON(t, env.router, http.MethodPost, "/api/transcribe", "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if body["error"] != "Missing audio file" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestCreateSessionDefaults(t *testing.T) {
	env := newTestEnv(t)
	w, body := doJSON(t, env.router, http.MethodPost, "/api/sessions", bearer(t, "user_1"), `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
	if body["title"] != "New Chat" || body["mode"] != "default" {
		t.Fatalf("unexpected defaults: %v", body)
	}
	if body["id"] == "" || body["createdAt"] == "" {
		t.Fatalf("missing id/createdAt: %v", body)
	}
}

func TestListSessionsScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	for _, uid := range []string{"user_1", "user_1", "user_2"} {
		if err := env.repo.CreateSession(context.Background(), &chat.Session{
			ID:     uuid.NewString(),
			UserID: uid,
			Title:  "New Chat",
			Mode:   chat.ModeDefault,
		}); err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}

	w, body := doJSON(t, env.router, http.MethodGet, "/api/sessions", bearer(t, "user_1"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	sessions, ok := body["sessions"].([]any)
	if !ok || len(sessions) != 2 {
		t.Fatalf("expected 2 sessions for user_1, got %v", body)
	}
}

func TestListSessionMessagesUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	w, body := doJSON(t, env.router, http.MethodGet, "/api/sessions/nope/messages", bearer(t, "user_1"), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if body["error"] != "Session not found" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestListSessionMessagesAndVersions(t *testing.T) {
	env := newTestEnv(t)
	sid := uuid.NewString()
	if err := env.repo.CreateSession(context.Background(), &chat.Session{
		ID:     sid,
		UserID: "user_1",
		Title:  "New Chat",
		Mode:   chat.ModeDefault,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := env.repo.CreateMessage(context.Background(), &chat.Message{
		ID:        uuid.NewString(),
		SessionID: sid,
		Role:      chat.RoleUser,
		Content:   "hello",
	}); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	seedVersion(t, env.repo, sid)

	w, body := doJSON(t, env.router, http.MethodGet, "/api/sessions/"+sid+"/messages", bearer(t, "user_1"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("messages status = %d", w.Code)
	}
	msgs, ok := body["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("unexpected messages: %v", body)
	}

	w, body = doJSON(t, env.router, http.MethodGet, "/api/sessions/"+sid+"/versions", bearer(t, "user_1"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("versions status = %d", w.Code)
	}
	versions, ok := body["versions"].([]any)
	if !ok || len(versions) != 1 {
		t.Fatalf("unexpected versions: %v", body)
	}
	v := versions[0].(map[string]any)
	if v["version"] != "v0" || v["fileName"] != "sales.csv" {
		t.Fatalf("unexpected version entry: %v", v)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	w, _ := doJSON(t, env.router, http.MethodGet, "/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
