// Package api serves the ledger over HTTP with gin.
//
// Reads are public. Writes carry a login proof in the X-Ledger-Nonce and X-Ledger-Signature
// headers: the nonce comes from POST /api/auth/challenge and the signature covers
// auth.LoginMessage(nonce). Requests without a proof act as the zero address.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/wardledger/internal/auth"
	"github.com/celerix-dev/wardledger/internal/vault"
	"github.com/celerix-dev/wardledger/pkg/ledger"
	"github.com/celerix-dev/wardledger/pkg/schema"
	"github.com/celerix-dev/wardledger/pkg/sdk"
)

const (
	HeaderNonce     = "X-Ledger-Nonce"
	HeaderSignature = "X-Ledger-Signature"

	callerKey       = "caller"
	defaultPageSize = 10
)

type Handler struct {
	Ledger     sdk.Backend
	Challenges *auth.Challenges
}

// Challenge issues a login nonce and the message to sign.
func (h *Handler) Challenge(c *gin.Context) {
	nonce := h.Challenges.Issue()
	c.JSON(http.StatusOK, gin.H{"nonce": nonce, "message": auth.LoginMessage(nonce)})
}

// Authenticate resolves the login proof headers into the request's caller.
func (h *Handler) Authenticate(c *gin.Context) {
	nonce := c.GetHeader(HeaderNonce)
	sigHex := c.GetHeader(HeaderSignature)
	if nonce == "" && sigHex == "" {
		c.Set(callerKey, common.Address{})
		c.Next()
		return
	}

	sig, err := vault.DecodeSignature(sigHex)
	if err != nil {
		abort(c, ledger.ErrUnauthorized)
		return
	}
	caller, err := h.Challenges.Redeem(nonce, sig)
	if err != nil {
		abort(c, err)
		return
	}
	c.Set(callerKey, caller)
	c.Next()
}

func (h *Handler) ListRecords(c *gin.Context) {
	size, err := queryUint(c, "size", defaultPageSize)
	if err != nil {
		badRequest(c, err)
		return
	}
	page, err := queryUint(c, "page", 0)
	if err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.Ledger.List(c.Request.Context(), size, page)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) CountRecords(c *gin.Context) {
	n, err := h.Ledger.Count(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *Handler) GetRecord(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.Ledger.Get(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListEvents(c *gin.Context) {
	after, err := queryUint(c, "after", 0)
	if err != nil {
		badRequest(c, err)
		return
	}
	limit, err := queryUint(c, "limit", 0)
	if err != nil {
		badRequest(c, err)
		return
	}

	events, err := h.Ledger.Events(c.Request.Context(), after, int(min(limit, uint64(maxInt))))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) Propose(c *gin.Context) {
	var input struct {
		ProposalURI string `json:"proposal_uri"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	id, err := h.Ledger.Propose(c.Request.Context(), caller(c), input.ProposalURI)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	var input struct {
		Status    string `json:"status" binding:"required"`
		ReportURI string `json:"report_uri"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	status, err := schema.ParseStatus(input.Status)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.Ledger.UpdateStatus(c.Request.Context(), caller(c), id, status, input.ReportURI); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) Transfer(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	var input struct {
		To string `json:"to" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	if !common.IsHexAddress(input.To) {
		badRequest(c, errors.New("to: not a hex address"))
		return
	}

	if err := h.Ledger.Transfer(c.Request.Context(), caller(c), id, common.HexToAddress(input.To)); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GetAdmin returns the current administrator.
func (h *Handler) GetAdmin(c *gin.Context) {
	admin, err := h.Ledger.Admin(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": admin.Hex()})
}

// TransferAdmin hands the administrator role to another address.
func (h *Handler) TransferAdmin(c *gin.Context) {
	var input struct {
		Admin string `json:"admin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	if !common.IsHexAddress(input.Admin) {
		badRequest(c, errors.New("admin: not a hex address"))
		return
	}

	next := common.HexToAddress(input.Admin)
	if err := h.Ledger.TransferAdmin(c.Request.Context(), caller(c), next); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": next.Hex()})
}

const maxInt = int(^uint(0) >> 1)

func caller(c *gin.Context) common.Address {
	if v, ok := c.Get(callerKey); ok {
		if addr, ok := v.(common.Address); ok {
			return addr
		}
	}
	return common.Address{}
}

func paramID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errors.New("id: must be an unsigned integer")
	}
	return id, nil
}

func queryUint(c *gin.Context, name string, def uint64) (uint64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New(name + ": must be an unsigned integer")
	}
	return n, nil
}

// StatusFor maps an error to its HTTP status through the ledger taxonomy.
func StatusFor(err error) int {
	switch ledger.KindOf(err) {
	case ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindState:
		return http.StatusConflict
	case ledger.KindLookup:
		return http.StatusNotFound
	case ledger.KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(StatusFor(err), gin.H{"error": err.Error(), "code": ledger.Code(err)})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": ledger.CodeBadRequest})
}
