package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestJobHandler_CreateJob_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &JobHandler{jobs: nil}
	r.POST("/jobs", handler.CreateJob)

	req, _ := http.NewRequest("POST", "/jobs", strings.NewReader(`{"title":"x","amount":100,"symbol":"TOKEN"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJobHandler_GetJob_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &JobHandler{jobs: nil}
	r.GET("/jobs/:id", handler.GetJob)

	req, _ := http.NewRequest("GET", "/jobs/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobHandler_Accept_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &JobHandler{jobs: nil}
	r.POST("/jobs/:id/accept", handler.AcceptJob)

	req, _ := http.NewRequest("POST", "/jobs/1/accept", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransferHandler_HandleInbound_BadTxID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TransferHandler{transfers: nil}
	r.POST("/transfers/inbound", handler.HandleInbound)

	body := `{"tx_id":"not-a-uuid","from":"alice","amount":100,"symbol":"TOKEN","memo":"fund:1"}`
	req, _ := http.NewRequest("POST", "/transfers/inbound", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "tx_id")
}

func TestTransferHandler_HandleInbound_MissingBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TransferHandler{transfers: nil}
	r.POST("/transfers/inbound", handler.HandleInbound)

	req, _ := http.NewRequest("POST", "/transfers/inbound", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisputeHandler_Arbitrate_MissingPercent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{disputes: nil}
	r.POST("/jobs/:id/arbitrate", func(c *gin.Context) {
		c.Set("account", "judge")
		handler.Arbitrate(c)
	})

	req, _ := http.NewRequest("POST", "/jobs/1/arbitrate", strings.NewReader(`{"notes":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
