package users

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/tyemirov/vidtube/internal/authkit"
	"github.com/tyemirov/vidtube/internal/media"
	"github.com/tyemirov/vidtube/internal/store"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

type profileHarness struct {
	router *gin.Engine
	store  *store.Store
	host   *media.MemoryHost
}

func newProfileHarness(t *testing.T) *profileHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	profileStore, err := store.NewInMemory(context.Background())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = profileStore.Close() })
	harness := &profileHarness{router: gin.New(), store: profileStore, host: media.NewMemoryHost()}
	logger := zaptest.NewLogger(t)
	routes := NewRoutes(profileStore, media.NewUploader(harness.host, 0, logger), logger)
	asActor := func(contextGin *gin.Context) {
		principal, err := profileStore.PrincipalByUsername(contextGin.Request.Context(), contextGin.GetHeader("X-Test-Actor"))
		if err == nil {
			authkit.SetPrincipal(contextGin, principal)
		}
		contextGin.Next()
	}
	routes.Mount(harness.router.Group("/api/v1/users", asActor))
	return harness
}

func (harness *profileHarness) seed(t *testing.T, username string) store.Principal {
	t.Helper()
	principal := store.Principal{Username: username, Email: username + "@example.com", FullName: username}
	if err := harness.store.CreatePrincipal(context.Background(), &principal); err != nil {
		t.Fatalf("create principal: %v", err)
	}
	return principal
}

func (harness *profileHarness) serve(t *testing.T, actor string, request *http.Request) (int, envelope) {
	t.Helper()
	request.Header.Set("X-Test-Actor", actor)
	recorder := httptest.NewRecorder()
	harness.router.ServeHTTP(recorder, request)
	var body envelope
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return recorder.Code, body
}

func imageRequest(t *testing.T, target string, field string, content []byte) *http.Request {
	t.Helper()
	return imageRequestWithMethod(t, http.MethodPatch, target, field, content)
}

func imageRequestWithMethod(t *testing.T, method string, target string, field string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if field != "" {
		part, err := writer.CreateFormFile(field, "image.png")
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		_, _ = part.Write(content)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	request := httptest.NewRequest(method, target, &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func TestCurrentUserReturnsPrincipal(t *testing.T) {
	harness := newProfileHarness(t)
	alice := harness.seed(t, "alice")

	status, body := harness.serve(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body.Message)
	}
	if !strings.Contains(string(body.Data), alice.ID) || strings.Contains(string(body.Data), "password") {
		t.Fatalf("unexpected principal payload: %s", body.Data)
	}

	status, _ = harness.serve(t, "nobody", httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil))
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a principal, got %d", status)
	}
}

func TestUpdateAccount(t *testing.T) {
	harness := newProfileHarness(t)
	harness.seed(t, "alice")
	harness.seed(t, "bob")

	update := func(payload string) (int, envelope) {
		request := httptest.NewRequest(http.MethodPatch, "/api/v1/users/update-account", strings.NewReader(payload))
		request.Header.Set("Content-Type", "application/json")
		return harness.serve(t, "alice", request)
	}

	status, body := update(`{"fullName":"Alice Liddell","email":"Alice@Wonder.land"}`)
	if status != http.StatusOK || body.Message != "Account details updated successfully" {
		t.Fatalf("expected 200, got %d %q", status, body.Message)
	}
	var principal store.Principal
	_ = json.Unmarshal(body.Data, &principal)
	if principal.FullName != "Alice Liddell" || principal.Email != "alice@wonder.land" {
		t.Fatalf("unexpected account: %+v", principal)
	}

	status, _ = update(`{"fullName":"Alice","email":"bob@example.com"}`)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for taken email, got %d", status)
	}
	status, _ = update(`{"fullName":"","email":"not-an-email"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid input, got %d", status)
	}
}

func TestReplaceAvatarDiscardsPrevious(t *testing.T) {
	harness := newProfileHarness(t)
	harness.seed(t, "alice")

	status, body := harness.serve(t, "alice", imageRequest(t, "/api/v1/users/avatar", "avatar", pngBytes))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body.Message)
	}
	first, err := harness.store.PrincipalByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("load principal: %v", err)
	}
	status, _ = harness.serve(t, "alice", imageRequest(t, "/api/v1/users/avatar", "avatar", pngBytes))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if harness.host.Has(first.AvatarPublicID) || harness.host.Len() != 1 {
		t.Fatalf("expected only the new avatar stored, got %d objects", harness.host.Len())
	}

	status, body = harness.serve(t, "alice", imageRequest(t, "/api/v1/users/avatar", "", nil))
	if status != http.StatusBadRequest || body.Message != "Avatar file is missing" {
		t.Fatalf("expected 400 Avatar file is missing, got %d %q", status, body.Message)
	}

	status, body = harness.serve(t, "alice", imageRequest(t, "/api/v1/users/cover-image", "coverImage", pngBytes))
	if status != http.StatusOK || body.Message != "Cover image updated successfully" {
		t.Fatalf("expected 200 for cover image, got %d %q", status, body.Message)
	}
}

func TestChannelProfileAndHistory(t *testing.T) {
	harness := newProfileHarness(t)
	alice := harness.seed(t, "alice")
	bob := harness.seed(t, "bob")
	ctx := context.Background()
	if _, err := harness.store.CreateRelation(ctx, alice.ID, bob.ID, store.RelationChannel); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	status, body := harness.serve(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/users/c/BOB", nil))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body.Message)
	}
	var profile store.ChannelProfile
	_ = json.Unmarshal(body.Data, &profile)
	if profile.SubscribersCount != 1 || !profile.IsSubscribed {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	status, body = harness.serve(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/users/c/carol", nil))
	if status != http.StatusNotFound || body.Message != "Channel does not exist" {
		t.Fatalf("expected 404, got %d %q", status, body.Message)
	}

	video := store.Video{VideoFile: "v", Thumbnail: "t", Title: "Cat compilation", IsPublished: true, OwnerID: bob.ID}
	if err := harness.store.CreateVideo(ctx, &video); err != nil {
		t.Fatalf("create video: %v", err)
	}
	if err := harness.store.RecordWatch(ctx, alice.ID, video.ID); err != nil {
		t.Fatalf("record watch: %v", err)
	}
	status, body = harness.serve(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/users/history", nil))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var history []store.WatchedVideo
	_ = json.Unmarshal(body.Data, &history)
	if len(history) != 1 || history[0].Owner.Username != "bob" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestProfileRoutesServeLongFormPaths(t *testing.T) {
	harness := newProfileHarness(t)
	harness.seed(t, "alice")
	harness.seed(t, "bob")

	request := httptest.NewRequest(http.MethodPut, "/api/v1/users/update-account-details", strings.NewReader(`{"fullName":"Alice L","email":"alice@wonder.land"}`))
	request.Header.Set("Content-Type", "application/json")
	status, body := harness.serve(t, "alice", request)
	if status != http.StatusOK || body.Message != "Account details updated successfully" {
		t.Fatalf("expected 200 from PUT update-account-details, got %d %q", status, body.Message)
	}

	status, body = harness.serve(t, "alice", imageRequestWithMethod(t, http.MethodPut, "/api/v1/users/update-avatar", "avatar", pngBytes))
	if status != http.StatusOK || body.Message != "Avatar file updated successfully" {
		t.Fatalf("expected 200 from PUT update-avatar, got %d %q", status, body.Message)
	}

	status, body = harness.serve(t, "alice", imageRequestWithMethod(t, http.MethodPut, "/api/v1/users/update-cover-image", "coverImage", pngBytes))
	if status != http.StatusOK || body.Message != "Cover image updated successfully" {
		t.Fatalf("expected 200 from PUT update-cover-image, got %d %q", status, body.Message)
	}

	status, body = harness.serve(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/users/channel/bob", nil))
	if status != http.StatusOK || body.Message != "User channel fetched successfully" {
		t.Fatalf("expected 200 from GET channel, got %d %q", status, body.Message)
	}
}
