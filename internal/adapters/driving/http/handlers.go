package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driving"
)

// verificationHeader carries the signed JWT on webhook deliveries.
const verificationHeader = "Plaid-Verification"

// maxWebhookBody bounds the webhook request body size.
const maxWebhookBody = 1 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// TaskResponse is returned when a background task is enqueued
// @Description Enqueued task reference
type TaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status" example:"queued"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns readiness, checking database and queue connectivity
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A dependency is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Link flow endpoints

// handleCreateLinkToken godoc
// @Summary      Create a link token
// @Description  Creates a token for the client-side link flow. Pass item_id to open link in update mode for an existing item.
// @Tags         Link
// @Accept       json
// @Produce      json
// @Param        request  body      driving.CreateLinkTokenRequest  true  "Link parameters"
// @Success      200      {object}  domain.LinkToken
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      404      {object}  ErrorResponse  "Item not found"
// @Router       /link/token [post]
func (s *Server) handleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	var req driving.CreateLinkTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.linkService.CreateLinkToken(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create link token")
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// handleExchangeToken godoc
// @Summary      Exchange a public token
// @Description  Trades the public token from a completed link flow for a persisted item with encrypted credentials, then syncs its accounts.
// @Tags         Link
// @Accept       json
// @Produce      json
// @Param        request  body      driving.ExchangeRequest  true  "Public token"
// @Success      201      {object}  map[string]string
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Router       /link/exchange [post]
func (s *Server) handleExchangeToken(w http.ResponseWriter, r *http.Request) {
	var req driving.ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PublicToken == "" {
		writeError(w, http.StatusBadRequest, "public_token is required")
		return
	}

	item, err := s.linkService.ExchangePublicToken(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token exchange failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"item_id":          item.ItemID,
		"institution_id":   item.InstitutionID,
		"institution_name": item.InstitutionName,
	})
}

// Item endpoints

// handleListItems godoc
// @Summary      List items with status
// @Description  Returns all items joined with health, account count and last sync time
// @Tags         Items
// @Produce      json
// @Success      200  {array}  domain.ItemStatus
// @Router       /items [get]
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.itemService.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// handleGetItem godoc
// @Summary      Get one item
// @Tags         Items
// @Produce      json
// @Param        id   path      string  true  "Item ID"
// @Success      200  {object}  domain.ItemStatus
// @Failure      404  {object}  ErrorResponse  "Item not found"
// @Router       /items/{id} [get]
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.itemService.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"item_id":          item.ItemID,
		"institution_id":   item.InstitutionID,
		"institution_name": item.InstitutionName,
		"healthy":          item.Healthy(),
		"error":            item.Error,
		"created_at":       item.CreatedAt,
		"updated_at":       item.UpdatedAt,
	})
}

// handleRemoveItem godoc
// @Summary      Remove an item
// @Description  Revokes the access token at the provider and deletes the item and its data locally
// @Tags         Items
// @Produce      json
// @Param        id   path      string  true  "Item ID"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "Item not found"
// @Router       /items/{id} [delete]
func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := s.linkService.RemoveItem(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleClearItemError godoc
// @Summary      Clear an item's error state
// @Description  Marks the item healthy after the user completed update-mode link, and enqueues a sync
// @Tags         Items
// @Produce      json
// @Param        id   path      string  true  "Item ID"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "Item not found"
// @Router       /items/{id}/clear-error [post]
func (s *Server) handleClearItemError(w http.ResponseWriter, r *http.Request) {
	if err := s.linkService.ClearItemError(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to clear item error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Sync trigger endpoints

// handleSyncItem godoc
// @Summary      Trigger a sync for one item
// @Description  Enqueues an incremental transaction sync task for the item
// @Tags         Sync
// @Produce      json
// @Param        id   path      string  true  "Item ID"
// @Success      202  {object}  TaskResponse
// @Failure      404  {object}  ErrorResponse  "Item not found"
// @Router       /items/{id}/sync [post]
func (s *Server) handleSyncItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	if _, err := s.itemService.GetItem(r.Context(), itemID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}

	s.enqueueTask(w, r, domain.NewSyncItemTask(itemID))
}

// handleSyncAll godoc
// @Summary      Trigger a sync for all healthy items
// @Tags         Sync
// @Produce      json
// @Success      202  {object}  TaskResponse
// @Router       /sync [post]
func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	s.enqueueTask(w, r, domain.NewSyncAllTask())
}

// handleBackfill godoc
// @Summary      Trigger a historical backfill
// @Description  Enqueues a backfill task fetching historical transactions. The years query parameter controls the date range.
// @Tags         Sync
// @Produce      json
// @Param        id     path      string  true   "Item ID"
// @Param        years  query     int     false  "Years of history to fetch (default 2)"
// @Success      202    {object}  TaskResponse
// @Failure      400    {object}  ErrorResponse  "Invalid years parameter"
// @Failure      404    {object}  ErrorResponse  "Item not found"
// @Router       /items/{id}/backfill [post]
func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	if _, err := s.itemService.GetItem(r.Context(), itemID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}

	yearsBack := 2
	if raw := r.URL.Query().Get("years"); raw != "" {
		years, err := strconv.Atoi(raw)
		if err != nil || years < 1 || years > 10 {
			writeError(w, http.StatusBadRequest, "years must be between 1 and 10")
			return
		}
		yearsBack = years
	}

	s.enqueueTask(w, r, domain.NewBackfillTask(itemID, yearsBack))
}

// handleRefreshBalances godoc
// @Summary      Trigger a balance refresh
// @Description  Enqueues a live balance sync for all healthy items, appending balance snapshots
// @Tags         Sync
// @Produce      json
// @Success      202  {object}  TaskResponse
// @Router       /balances/refresh [post]
func (s *Server) handleRefreshBalances(w http.ResponseWriter, r *http.Request) {
	s.enqueueTask(w, r, domain.NewSyncBalancesTask())
}

// handleGetTask godoc
// @Summary      Get a background task
// @Tags         Sync
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskQueue.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Reporting endpoints

// handleListAccounts godoc
// @Summary      List accounts
// @Tags         Reporting
// @Produce      json
// @Param        item_id  query     string  false  "Filter by item"
// @Success      200      {array}   domain.Account
// @Router       /accounts [get]
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.itemService.ListAccounts(r.Context(), r.URL.Query().Get("item_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// handleBalanceHistory godoc
// @Summary      Get balance snapshot history for an account
// @Tags         Reporting
// @Produce      json
// @Param        id     path      string  true   "Account ID"
// @Param        limit  query     int     false  "Maximum snapshots to return"
// @Success      200    {array}   domain.BalanceSnapshot
// @Router       /accounts/{id}/balances [get]
func (s *Server) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := s.itemService.BalanceHistory(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get balance history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// handleListTransactions godoc
// @Summary      List transactions
// @Description  Returns transactions matching the filter, newest first, with the total match count for paging
// @Tags         Reporting
// @Produce      json
// @Param        item_id     query     string  false  "Filter by item"
// @Param        account_id  query     string  false  "Filter by account"
// @Param        start_date  query     string  false  "Inclusive start date (YYYY-MM-DD)"
// @Param        end_date    query     string  false  "Inclusive end date (YYYY-MM-DD)"
// @Param        limit       query     int     false  "Page size (default 100, max 500)"
// @Param        offset      query     int     false  "Page offset"
// @Success      200         {object}  map[string]any
// @Failure      400         {object}  ErrorResponse  "Invalid date filter"
// @Router       /transactions [get]
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	filter := driving.TransactionQuery{
		ItemID:    q.Get("item_id"),
		AccountID: q.Get("account_id"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Limit:     limit,
		Offset:    offset,
	}

	txns, total, err := s.itemService.ListTransactions(r.Context(), filter)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid date filter, expected YYYY-MM-DD")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"total":        total,
		"offset":       filter.Offset,
	})
}

// Webhook endpoint

// handleWebhook godoc
// @Summary      Provider webhook intake
// @Description  Verifies the delivery signature, then reacts to the event: transaction webhooks enqueue a sync, item webhooks update item health.
// @Tags         Webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse  "Malformed payload"
// @Failure      401  {object}  ErrorResponse  "Signature verification failed"
// @Router       /webhook [post]
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if s.verifier != nil {
		if err := s.verifier.Verify(r.Context(), body, r.Header.Get(verificationHeader)); err != nil {
			s.logger.Warn("webhook signature rejected", "error", err)
			writeError(w, http.StatusUnauthorized, "signature verification failed")
			return
		}
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "malformed webhook payload")
		return
	}
	event.Raw = body
	event.ReceivedAt = time.Now()

	if err := s.webhookService.HandleEvent(r.Context(), &event); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process webhook")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// enqueueTask enqueues a task and responds 202 with its ID.
func (s *Server) enqueueTask(w http.ResponseWriter, r *http.Request, task *domain.Task) {
	if err := s.taskQueue.Enqueue(r.Context(), task); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enqueue task")
		return
	}
	writeJSON(w, http.StatusAccepted, TaskResponse{TaskID: task.ID, Status: "queued"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
