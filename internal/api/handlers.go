package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/wire"
)

const maxTransactionBody = 1 << 20 // 1 MiB

// handleSubmitTransaction implements spec.md §6's "Body = SCALE-encoded
// SignedTransaction. Response: 200 OK on accepted-to-queue; 4xx on
// validation failure with an error-kind discriminant."
func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTransactionBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read_body", err)
		return
	}
	if len(body) > maxTransactionBody {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", nil)
		return
	}

	tx, err := core.DecodeTransaction(wire.NewDecoder(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_transaction", err)
		return
	}

	result := s.queue.Push(time.Now(), tx)
	if !result.Accepted {
		writeError(w, http.StatusUnprocessableEntity, result.Reason.Error(), nil)
		return
	}

	hash := tx.Hash()
	writeJSON(w, http.StatusOK, transactionAccepted{
		Hash:  hash.String(),
		Final: result.Final,
	})
}

type transactionAccepted struct {
	Hash  string `json:"hash"`
	Final bool   `json:"final"`
}

// queryRequest is the thin stand-in spec.md §6 allows for the full signed
// query protocol ("non-goal... interface only"): enough shape to resolve an
// account out of world state, no sorting/filter predicate, and no
// pagination. AssetId and Cursor are decoded but not used by handleQuery.
type queryRequest struct {
	AccountId string `json:"account_id,omitempty"`
	AssetId   string `json:"asset_id,omitempty"`
	Cursor    uint64 `json:"cursor,omitempty"`
}

type queryResponse struct {
	Result     any    `json:"result"`
	NextCursor string `json:"next_cursor"`
}

// handleQuery implements spec.md §6's batched-result query endpoint in its
// thinnest form: one account lookup per call (asset_id is not looked up,
// and a query without account_id is rejected), never batched, with
// next_cursor always the empty-string sentinel for "no further pages."
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTransactionBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_query", err)
		return
	}

	switch {
	case req.AccountId != "":
		accountId, err := ids.ParseAccountId(req.AccountId)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_account_id", err)
			return
		}
		account, err := s.world.Account(accountId)
		if err != nil {
			writeError(w, http.StatusNotFound, "account_not_found", err)
			return
		}
		writeJSON(w, http.StatusOK, queryResponse{Result: account, NextCursor: ""})
	default:
		writeError(w, http.StatusBadRequest, "empty_query", errors.New("query must name account_id"))
	}
}

// handleGetConfiguration implements spec.md §6's "GET returns the DTO."
func (s *Server) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	dto, err := s.config.GetSnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "configuration_unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// handleUpdateConfiguration implements spec.md §6's "POST applies an
// update; fields not present are unchanged" by seeding the update from the
// current snapshot before decoding the request body over it.
func (s *Server) handleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	dto, err := s.config.GetSnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "configuration_unavailable", err)
		return
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTransactionBody)).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_configuration", err)
		return
	}
	if err := s.config.Update(r.Context(), dto); err != nil {
		writeError(w, http.StatusServiceUnavailable, "configuration_unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	resp := errorResponse{Kind: kind}
	if err != nil {
		resp.Message = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
