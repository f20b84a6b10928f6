package http_api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/geomark-app/geomark/internal/models"
)

// CollectRequest represents the JSON body for a collection attempt
type CollectRequest struct {
	UserID string `json:"user_id" binding:"required"`
	// Pointers distinguish a missing coordinate from a zero one.
	Latitude     *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude    *float64 `json:"longitude" binding:"required,min=-180,max=180"`
	Accuracy     float64  `json:"accuracy" binding:"omitempty,min=0"`
	MockLocation bool     `json:"mock_location"`
	DeviceID     string   `json:"device_id"`
}

// TransferRequest represents the JSON body for a points transfer
type TransferRequest struct {
	SenderID   string `json:"sender_id" binding:"required"`
	ReceiverID string `json:"receiver_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required"`
	Message    string `json:"message"`
}

// TransferResponse represents the success response for a transfer
type TransferResponse struct {
	Success     bool                      `json:"success"`
	Transaction *models.LedgerTransaction `json:"transaction"`
}

// MintStatusResponse represents the mint state of a collection record
type MintStatusResponse struct {
	RecordID   string            `json:"record_id"`
	MintStatus models.MintStatus `json:"mint_status"`
	TokenID    string            `json:"token_id,omitempty"`
	TxHash     string            `json:"tx_hash,omitempty"`
}

// collect is a handler for the collect endpoint.
func (s *HTTPServer) collect(c *gin.Context) {
	locationID := c.Param("location_id")

	var req CollectRequest

	// Parse and validate JSON request body
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	attempt := &models.CollectionAttempt{
		UserID:       req.UserID,
		Latitude:     *req.Latitude,
		Longitude:    *req.Longitude,
		Accuracy:     req.Accuracy,
		MockLocation: req.MockLocation,
		DeviceID:     req.DeviceID,
	}

	result, err := s.collections.Collect(req.UserID, locationID, attempt)
	if err != nil {
		s.writeCollectError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// writeCollectError maps business-rule rejections to HTTP statuses.
func (s *HTTPServer) writeCollectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrUserNotFound), errors.Is(err, models.ErrLocationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, models.ErrAlreadyCollected):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, models.ErrUserInactive),
		errors.Is(err, models.ErrLocationInactive),
		errors.Is(err, models.ErrEventNotStarted),
		errors.Is(err, models.ErrEventEnded):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": err.Error()})
	default:
		s.logger.Error("Failed to process collection attempt", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to process collection attempt"})
	}
}

// mintStatus is a handler for the mint_status endpoint.
func (s *HTTPServer) mintStatus(c *gin.Context) {
	recordID := c.Param("record_id")

	record, err := s.collections.MintStatus(recordID)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		s.logger.Error("Failed to get mint status", "error", err, "record", recordID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get mint status"})
		return
	}

	c.JSON(http.StatusOK, MintStatusResponse{
		RecordID:   record.ID,
		MintStatus: record.MintStatus,
		TokenID:    record.TokenID,
		TxHash:     record.TxHash,
	})
}

// balance is a handler for the balance endpoint.
func (s *HTTPServer) balance(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	summary, err := s.ledger.Balance(userID)
	if err != nil {
		s.logger.Error("Failed to get balance", "error", err, "user", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get balance"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// transactions is a handler for the transactions endpoint.
// History is newest first; page and page_size control pagination.
func (s *HTTPServer) transactions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	filter := models.TransactionFilter{
		Type: models.TransactionType(c.Query("type")),
	}
	page := models.Page{
		Number: queryInt(c, "page"),
		Size:   queryInt(c, "page_size"),
	}

	txs, err := s.ledger.Transactions(userID, filter, page)
	if err != nil {
		s.logger.Error("Failed to get transactions", "error", err, "user", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// transfer is a handler for the transfer endpoint.
func (s *HTTPServer) transfer(c *gin.Context) {
	var req TransferRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	out, _, err := s.ledger.Transfer(req.SenderID, req.ReceiverID, req.Amount, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrSelfTransfer):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, models.ErrInsufficientBalance):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, models.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		default:
			s.logger.Error("Failed to transfer points", "error", err, "sender", req.SenderID)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to transfer points"})
		}
		return
	}

	c.JSON(http.StatusOK, TransferResponse{
		Success:     true,
		Transaction: out,
	})
}

// leaderboard is a handler for the leaderboard endpoint.
func (s *HTTPServer) leaderboard(c *gin.Context) {
	limit := queryInt(c, "limit")
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	accounts, err := s.ledger.Leaderboard(limit)
	if err != nil {
		s.logger.Error("Failed to get leaderboard", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": accounts})
}

func queryInt(c *gin.Context, name string) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return value
}
