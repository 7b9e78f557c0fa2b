package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestRouter(commands Commands, uploads Uploader, token string) http.Handler {
	logger := NewMockHandlerLogger()
	conversationHandler := NewConversationHandler(uploads, commands, logger)
	return NewRouter(conversationHandler, NewAuthMiddleware(token, logger).Middleware, []string{"http://localhost:3000"})
}

func TestNewRouter_Health(t *testing.T) {
	router := newTestRouter(&mockCommands{}, &mockUploader{}, "secret")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"service":"pdf-tools-bot"`) {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestNewRouter_APIRequiresToken(t *testing.T) {
	router := newTestRouter(&mockCommands{}, &mockUploader{}, "secret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/1/commands", strings.NewReader(`{"text":"/help"}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}
