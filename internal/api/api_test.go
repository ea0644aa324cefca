package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/kiso"
	"github.com/hyperledger/iroha-sub010/internal/queue"
	"github.com/hyperledger/iroha-sub010/internal/wire"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

type alwaysAuthority struct{}

func (alwaysAuthority) SignatureThreshold(core.SignedTransaction) (int, bool) { return 1, true }

type neverCommitted struct{}

func (neverCommitted) IsCommitted(cryptofacade.Hash) bool { return false }

func newTestServer(t *testing.T) (http.Handler, *wsv.WSV, *kiso.Handle) {
	t.Helper()
	world := wsv.New()
	require.NoError(t, world.RegisterDomain("wonderland"))
	require.NoError(t, world.RegisterAccount(ids.AccountId{Name: "alice", Domain: "wonderland"}, nil))

	q := queue.New(16, alwaysAuthority{}, neverCommitted{})

	actor, handle := kiso.New(kiso.ConfigDTO{LogLevel: "info"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go actor.Run(ctx)

	logger := logrus.NewEntry(logrus.New())
	return NewServer(q, world, handle, logger, nil), world, handle
}

func signedTxBytes(t *testing.T) []byte {
	t.Helper()
	kp, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	payload := core.TransactionPayload{
		Authority: ids.AccountId{Name: "alice", Domain: "wonderland"},
		Instructions: []core.Instruction{{
			Kind:     core.InstructionMint,
			AssetId:  ids.AssetId{Definition: ids.AssetDefinitionId{Name: "rose", Domain: "wonderland"}, Account: ids.AccountId{Name: "alice", Domain: "wonderland"}},
			Amount:   core.NewQuantity(1),
		}},
		CreationTime: time.Now(),
		TimeToLiveMs: 60_000,
	}
	h := payload.Hash()
	tx := core.SignedTransaction{Payload: payload, Signatures: []core.Signature{{PublicKey: kp.Public, Bytes: kp.Sign(h[:])}}}

	e := wire.NewEncoder()
	core.EncodeTransaction(e, tx)
	return e.Bytes()
}

func TestHandleSubmitTransactionAcceptsValidTransaction(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/transaction", bytes.NewReader(signedTxBytes(t)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp transactionAccepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Hash)
}

func TestHandleSubmitTransactionRejectsMalformedBody(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/transaction", bytes.NewReader([]byte{0xFF, 0x01}))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueryReturnsAccount(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body, err := json.Marshal(queryRequest{AccountId: "alice@wonderland"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.NextCursor)
}

func TestHandleQueryReturnsNotFoundForUnknownAccount(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body, err := json.Marshal(queryRequest{AccountId: "nobody@wonderland"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleConfigurationRoundTrips(t *testing.T) {
	srv, _, _ := newTestServer(t)

	getReq := httptest.NewRequest(http.MethodGet, "/configuration", nil)
	getRec := httptest.NewRecorder()
	srv.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)
	var dto kiso.ConfigDTO
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &dto))
	assert.Equal(t, "info", dto.LogLevel)

	update, err := json.Marshal(kiso.ConfigDTO{LogLevel: "debug"})
	require.NoError(t, err)
	postReq := httptest.NewRequest(http.MethodPost, "/configuration", bytes.NewReader(update))
	postRec := httptest.NewRecorder()
	srv.ServeHTTP(postRec, postReq)
	require.Equal(t, http.StatusOK, postRec.Code)

	getReq2 := httptest.NewRequest(http.MethodGet, "/configuration", nil)
	getRec2 := httptest.NewRecorder()
	srv.ServeHTTP(getRec2, getReq2)
	var dto2 kiso.ConfigDTO
	require.NoError(t, json.Unmarshal(getRec2.Body.Bytes(), &dto2))
	assert.Equal(t, "debug", dto2.LogLevel)
}
