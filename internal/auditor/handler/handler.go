package handler

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/probitylabs/sealchain/internal/auditor/service"
	"github.com/probitylabs/sealchain/internal/auth"
	"github.com/probitylabs/sealchain/internal/checkpoint"
	"github.com/probitylabs/sealchain/internal/incident"
	"github.com/probitylabs/sealchain/pkg/indexer"
	"github.com/probitylabs/sealchain/pkg/repchain"
)

// AuditHandler handles HTTP requests for the chain audit API.
type AuditHandler struct {
	auditor     *service.Auditor
	checkpoints checkpoint.Store
	incidents   incident.Repository
	tokens      *auth.TokenIssuer // nil = no auth enforcement on audit triggers
	logger      *zap.Logger
}

// NewAuditHandler creates a new AuditHandler. tokens may be nil to disable
// JWT auth on the audit trigger route.
func NewAuditHandler(auditor *service.Auditor, checkpoints checkpoint.Store, incidents incident.Repository, tokens *auth.TokenIssuer, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditor:     auditor,
		checkpoints: checkpoints,
		incidents:   incidents,
		tokens:      tokens,
		logger:      logger,
	}
}

// requireToken returns the RequireToken middleware when auth is configured,
// or a no-op middleware for development/open mode.
func (h *AuditHandler) requireToken() gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return auth.RequireToken(h.tokens)
}

// Register registers all audit API routes on the given router group.
func (h *AuditHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/chains", h.ListChains)
	rg.POST("/seal/hash", h.SealHash)
	rg.POST("/verify/:kind", h.Verify)

	chains := rg.Group("/assets/:asset/chains/:kind")
	{
		chains.GET("/checkpoint", h.GetCheckpoint)
		chains.POST("/audit", h.requireToken(), h.TriggerAudit)
	}

	incidents := rg.Group("/incidents")
	{
		incidents.GET("", h.ListIncidents)
		incidents.GET("/:id", h.GetIncident)
	}
}

// ListChains handles GET /chains — the chain kinds and their hash domains.
func (h *AuditHandler) ListChains(c *gin.Context) {
	kinds := repchain.Kinds()
	chains := make([]gin.H, 0, len(kinds))
	for _, k := range kinds {
		chains = append(chains, gin.H{
			"kind":         k.String(),
			"chain_domain": string(k.Domain()),
			"leaf_domain":  string(k.LeafDomain()),
		})
	}
	c.JSON(http.StatusOK, gin.H{"chains": chains})
}

type sealHashRequest struct {
	Value         string `json:"value" binding:"required"`
	ValueDecimals uint8  `json:"value_decimals"`
	Score         *int   `json:"score"`
	Tag1          string `json:"tag1"`
	Tag2          string `json:"tag2"`
	Endpoint      string `json:"endpoint"`
	FeedbackURI   string `json:"feedback_uri"`
	FileHash      string `json:"file_hash"`
}

// SealHash handles POST /seal/hash — computes the canonical seal digest for
// the given feedback parameters. Transaction builders call this to get the
// hash they must cite on chain.
func (h *AuditHandler) SealHash(c *gin.Context) {
	var req sealHashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	value, ok := new(big.Int).SetString(req.Value, 10)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must be a base-10 integer"})
		return
	}

	params := repchain.SealParams{
		Value:         value,
		ValueDecimals: req.ValueDecimals,
		Score:         req.Score,
		Tag1:          req.Tag1,
		Tag2:          req.Tag2,
		Endpoint:      req.Endpoint,
		FeedbackURI:   req.FeedbackURI,
	}
	if req.FileHash != "" {
		fileHash, err := hex.DecodeString(req.FileHash)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file_hash must be hex"})
			return
		}
		params.FileHash = fileHash
	}

	hash, err := repchain.ComputeSealHash(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"seal_hash": hash.Hex()})
}

type verifyRequest struct {
	StartDigest    string          `json:"start_digest"`
	StartCount     uint64          `json:"start_count"`
	ExpectedDigest string          `json:"expected_digest"`
	Events         json.RawMessage `json:"events" binding:"required"`
}

// Verify handles POST /verify/:kind — stateless replay of caller-supplied
// events. Accepts an optional checkpoint to resume from and an optional
// expected tip digest to compare against.
func (h *AuditHandler) Verify(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var opts []repchain.ReplayOption
	if req.StartDigest != "" {
		start, err := repchain.ParseHash(req.StartDigest)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_digest must be a 32-byte hex digest"})
			return
		}
		opts = append(opts, repchain.WithCheckpoint(start.Bytes(), req.StartCount))
	}

	var expected *repchain.Hash
	if req.ExpectedDigest != "" {
		parsed, err := repchain.ParseHash(req.ExpectedDigest)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expected_digest must be a 32-byte hex digest"})
			return
		}
		expected = &parsed
	}

	res, err := replayRecords(kind, req.Events, opts)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	RecordReplay(kind.String(), res.Valid)

	resp := gin.H{"result": res}
	if expected != nil {
		resp["expected_match"] = *expected == res.FinalDigest
	}
	c.JSON(http.StatusOK, resp)
}

// replayRecords decodes the raw event list for the kind and replays it.
func replayRecords(kind repchain.ChainKind, raw json.RawMessage, opts []repchain.ReplayOption) (*repchain.ReplayResult, error) {
	switch kind {
	case repchain.ChainFeedback:
		var records []indexer.FeedbackRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		events, err := indexer.DecodeFeedbackRecords(records)
		if err != nil {
			return nil, err
		}
		return repchain.ReplayFeedbackChain(events, opts...)

	case repchain.ChainResponse:
		var records []indexer.ResponseRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		events, err := indexer.DecodeResponseRecords(records)
		if err != nil {
			return nil, err
		}
		return repchain.ReplayResponseChain(events, opts...)

	default:
		var records []indexer.RevokeRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		events, err := indexer.DecodeRevokeRecords(records)
		if err != nil {
			return nil, err
		}
		return repchain.ReplayRevokeChain(events, opts...)
	}
}

// GetCheckpoint handles GET /assets/:asset/chains/:kind/checkpoint.
func (h *AuditHandler) GetCheckpoint(c *gin.Context) {
	asset, ok := parseAsset(c)
	if !ok {
		return
	}
	kind, ok := parseKind(c)
	if !ok {
		return
	}

	cp, err := h.checkpoints.Get(c.Request.Context(), hex.EncodeToString(asset), kind)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no checkpoint for this chain"})
			return
		}
		h.logger.Error("get checkpoint", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load checkpoint"})
		return
	}

	c.JSON(http.StatusOK, cp)
}

// TriggerAudit handles POST /assets/:asset/chains/:kind/audit — runs an
// incremental audit against the indexer and returns the report. A broken
// chain is a 200 with valid=false; only an unreachable indexer errors.
func (h *AuditHandler) TriggerAudit(c *gin.Context) {
	asset, ok := parseAsset(c)
	if !ok {
		return
	}
	kind, ok := parseKind(c)
	if !ok {
		return
	}

	report, err := h.auditor.AuditChain(c.Request.Context(), asset, kind)
	if err != nil {
		h.logger.Error("audit",
			zap.String("asset", hex.EncodeToString(asset)),
			zap.String("kind", kind.String()),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "audit failed: indexer unavailable"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListIncidents handles GET /incidents with optional asset, severity, and
// limit query filters.
func (h *AuditHandler) ListIncidents(c *gin.Context) {
	f := incident.Filter{Asset: c.Query("asset")}

	if sev := c.Query("severity"); sev != "" {
		switch incident.Severity(sev) {
		case incident.SeverityInfo, incident.SeverityWarning, incident.SeverityCritical:
			f.Severity = incident.Severity(sev)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be info, warning, or critical"})
			return
		}
	}

	if ls := c.Query("limit"); ls != "" {
		n, err := strconv.Atoi(ls)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		f.Limit = n
	}

	incs, err := h.incidents.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list incidents", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list incidents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"incidents": incs, "count": len(incs)})
}

// GetIncident handles GET /incidents/:id.
func (h *AuditHandler) GetIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}

	inc, err := h.incidents.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, incident.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
			return
		}
		h.logger.Error("get incident", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load incident"})
		return
	}

	c.JSON(http.StatusOK, inc)
}

// parseAsset reads the :asset path param as a 32-byte hex key. Writes the
// error response itself when the param is malformed.
func parseAsset(c *gin.Context) ([]byte, bool) {
	asset, err := hex.DecodeString(c.Param("asset"))
	if err != nil || len(asset) != repchain.KeySize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset must be 32 bytes of hex"})
		return nil, false
	}
	return asset, true
}

// parseKind reads the :kind path param as a chain kind.
func parseKind(c *gin.Context) (repchain.ChainKind, bool) {
	kind, err := repchain.ParseChainKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}
	return kind, true
}
