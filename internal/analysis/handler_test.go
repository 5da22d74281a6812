package analysis

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eleven-am/civic311/internal/dto"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandlerServer(t *testing.T, provider Provider) (*echo.Echo, *Dataset) {
	t.Helper()
	ds := newTestDataset(t)
	svc := NewService(provider, nil, ds, newTestLogger())
	h := NewHandler(svc, newTestLogger())

	e := echo.New()
	h.RegisterRoutes(e.Group("/api"))
	return e, ds
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Analyze(t *testing.T) {
	provider := &fakeProvider{model: "m", answer: "Item: bread $2.00\nTotal: $2.00"}
	e, _ := newTestHandlerServer(t, provider)

	rec := postJSON(e, "/api/analyze", `{"imagePath":"receipt1.JPG"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp dto.AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "receipt1.JPG", resp.ImagePath)
	lower := strings.ToLower(resp.Analysis)
	assert.True(t, strings.Contains(lower, "total") || strings.Contains(lower, "item"))
}

func TestHandler_AnalyzeErrors(t *testing.T) {
	e, _ := newTestHandlerServer(t, &fakeProvider{model: "m", err: errProviderDown})

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"empty body", `{}`, http.StatusBadRequest, "Image path is required. Please provide imagePath in the request body."},
		{"missing image", `{"imagePath":"nonexistent.jpg"}`, http.StatusNotFound, "Image not found: nonexistent.jpg"},
		{"provider failure", `{"imagePath":"receipt1.JPG"}`, http.StatusInternalServerError, "Failed to analyze image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(e, "/api/analyze", tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body.Error)
		})
	}
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestHandler_Upload(t *testing.T) {
	e, ds := newTestHandlerServer(t, &fakeProvider{model: "m"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "image", "pothole.jpg", jpegBytes))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp dto.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pothole.jpg", resp.Filename)

	data, err := ds.Read("pothole.jpg")
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, data)
}

func TestHandler_UploadErrors(t *testing.T) {
	e, _ := newTestHandlerServer(t, &fakeProvider{model: "m"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No file uploaded")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "image", "notes.txt", []byte("plain text")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Status(t *testing.T) {
	e, _ := newTestHandlerServer(t, &fakeProvider{model: "gemini-1.5-flash"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ModelStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Gemini AI model is working correctly", resp.Message)
	assert.Equal(t, "gemini-1.5-flash", resp.Model)
}

func TestHandler_StatusFailures(t *testing.T) {
	e, _ := newTestHandlerServer(t, &fakeProvider{model: "m", pingErr: errProviderDown})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze/status", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp dto.ModelStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "Failed to connect to Gemini AI", resp.Message)
	assert.Equal(t, errProviderDown.Error(), resp.Details)

	e, _ = newTestHandlerServer(t, nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze/status", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Gemini API key not configured", resp.Message)
}
