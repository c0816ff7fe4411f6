package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dangbaokhoa/identity-card/internal/common"
	"github.com/dangbaokhoa/identity-card/internal/extract"
	"github.com/dangbaokhoa/identity-card/internal/pipeline"
	"github.com/dangbaokhoa/identity-card/internal/qr"
	"github.com/dangbaokhoa/identity-card/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type passthroughPre struct{}

func (passthroughPre) Variants(_ context.Context, path string) ([]string, func(), error) {
	return []string{path}, func() {}, nil
}

type cannedEngine struct{ obs []extract.Observation }

func (c cannedEngine) Recognize(context.Context, string) ([]extract.Observation, error) {
	return c.obs, nil
}

type cannedQR struct {
	rec extract.Record
	err error
}

func (c cannedQR) DecodeRecord(context.Context, ...string) (extract.Record, error) {
	return c.rec, c.err
}

type cannedRecords struct {
	rows []store.RecordRow
	err  error
}

func (c cannedRecords) ListRecords(context.Context) ([]store.RecordRow, error) {
	return c.rows, c.err
}

func (c cannedRecords) GetRecord(_ context.Context, jobID uuid.UUID) (store.RecordRow, error) {
	if c.err != nil {
		return store.RecordRow{}, c.err
	}
	for _, row := range c.rows {
		if row.JobID == jobID {
			return row, nil
		}
	}
	return store.RecordRow{}, fmt.Errorf("record %s: %w", jobID, common.ErrNotFound)
}

func newTestRouter(engine cannedEngine, decoder cannedQR) *gin.Engine {
	proc := pipeline.NewProcessor(nil, passthroughPre{}, engine, extract.NewParser(extract.DefaultPolicy(), nil), decoder)
	return New(proc, nil, nil).Router()
}

func newRecordsRouter(records RecordStore) *gin.Engine {
	proc := pipeline.NewProcessor(nil, passthroughPre{}, cannedEngine{}, extract.NewParser(extract.DefaultPolicy(), nil), cannedQR{})
	return New(proc, records, nil).Router()
}

func uploadRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "card.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(cannedEngine{}, cannedQR{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestExtractUpload(t *testing.T) {
	engine := cannedEngine{obs: []extract.Observation{{
		Box:        [4]extract.Point{{X: 0, Y: 0}, {X: 200, Y: 0}, {X: 200, Y: 20}, {X: 0, Y: 20}},
		Text:       "Số / No.: 049205000868",
		Confidence: 0.9,
	}}}
	router := newTestRouter(engine, cannedQR{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/extract"))

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "049205000868", got["no"])
	assert.Equal(t, "049205000868", got["id_number"], "aliases ride along")
}

func TestExtractMissingImage(t *testing.T) {
	router := newTestRouter(cannedEngine{}, cannedQR{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", strings.NewReader(""))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractQRPayloadJSON(t *testing.T) {
	router := newTestRouter(cannedEngine{}, cannedQR{})

	body := `{"payload":"049205000868|206454491|Đặng Bảo Khoa|01072005|Nam|Tam Kỳ, Quảng Nam|11042021"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract/qr", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Đặng Bảo Khoa", got["fullname"])
	assert.Equal(t, "01/07/2005", got["dob"])
	assert.Equal(t, "206454491", got["old_id"])
}

func TestExtractQRPayloadMalformed(t *testing.T) {
	router := newTestRouter(cannedEngine{}, cannedQR{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract/qr", strings.NewReader(`{"payload":"a|b|c"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var got struct {
		Error  string `json:"error"`
		Fields int    `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Fields)
	assert.Contains(t, got.Error, "expected 7 fields")
}

func TestExtractQRUploadNoCode(t *testing.T) {
	router := newTestRouter(cannedEngine{}, cannedQR{err: qr.ErrNoQRCode})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/extract/qr"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestExtractQRUploadSuccess(t *testing.T) {
	router := newTestRouter(cannedEngine{}, cannedQR{rec: extract.Record{Number: "049205000868", Nationality: "Việt Nam"}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/extract/qr"))

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "049205000868", got["so"])
}

func TestListRecords(t *testing.T) {
	jobID := uuid.New()
	router := newRecordsRouter(cannedRecords{rows: []store.RecordRow{{
		JobID:      jobID,
		SourcePath: "/cards/front.jpg",
		Mode:       store.ModeVisual,
		Record:     extract.Record{FullName: "Đặng Bảo Khoa", Number: "049205000868"},
	}}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got []struct {
		JobID      string            `json:"job_id"`
		SourcePath string            `json:"source_path"`
		Mode       string            `json:"mode"`
		Record     map[string]string `json:"record"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, jobID.String(), got[0].JobID)
	assert.Equal(t, "/cards/front.jpg", got[0].SourcePath)
	assert.Equal(t, store.ModeVisual, got[0].Mode)
	assert.Equal(t, "Đặng Bảo Khoa", got[0].Record["fullname"])
	assert.Equal(t, "049205000868", got[0].Record["so"])
}

func TestGetRecord(t *testing.T) {
	jobID := uuid.New()
	router := newRecordsRouter(cannedRecords{rows: []store.RecordRow{{
		JobID:  jobID,
		Mode:   store.ModeQR,
		Record: extract.Record{Number: "079123456789"},
	}}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/"+jobID.String(), nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Mode   string            `json:"mode"`
		Record map[string]string `json:"record"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, store.ModeQR, got.Mode)
	assert.Equal(t, "079123456789", got.Record["so"])
}

func TestGetRecordNotFound(t *testing.T) {
	router := newRecordsRouter(cannedRecords{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRecordBadID(t *testing.T) {
	router := newRecordsRouter(cannedRecords{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRecordsStoreFailure(t *testing.T) {
	router := newRecordsRouter(cannedRecords{err: fmt.Errorf("list records: %w", common.ErrDatabase)})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, common.ErrInternal.Error(), got["error"])
}

func TestRecordsRoutesNeedStore(t *testing.T) {
	router := newTestRouter(cannedEngine{}, cannedQR{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
