// Package httpapi exposes the relay's JSON endpoints over gin.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/telany/faxrelay/internal/errs"
	"github.com/telany/faxrelay/internal/service"
)

// Server bundles the application services behind the HTTP handlers.
type Server struct {
	init   *service.InitService
	bearer *service.BearerService
	sync   *service.SyncService
}

// NewServer constructs the handler set.
func NewServer(init *service.InitService, bearer *service.BearerService, sync *service.SyncService) *Server {
	return &Server{init: init, bearer: bearer, sync: sync}
}

type initRequest struct {
	AuthenticationToken string `json:"authentication_token" binding:"required"`
	FaxUser             string `json:"fax_user" binding:"required"`
	DeviceID            string `json:"device_id" binding:"required"`
}

// Init authenticates a client installation and hands back a device token.
func (s *Server) Init(c *gin.Context) {
	var req initRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
		return
	}

	res, err := s.init.Initialize(c.Request.Context(), req.AuthenticationToken, req.FaxUser, req.DeviceID, c.ClientIP())
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jwt_token":       res.Token,
		"domain_uuid":     res.DomainUUID.String(),
		"all_fax_numbers": res.AllFaxNumbers,
		"expires_in":      res.ExpiresIn,
	})
}

// Bearer returns a valid upstream bearer token for the caller's tenant.
func (s *Server) Bearer(c *gin.Context) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "missing bearer token"})
		return
	}

	rec, err := s.bearer.Token(c.Request.Context(), claims.Subject)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bearer_token": rec.BearerToken,
		"expires_at":   rec.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type syncPostRequest struct {
	IDs []string `json:"ids"`
}

// SyncPost records downloaded item ids for the caller's tenant.
func (s *Server) SyncPost(c *gin.Context) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "missing bearer token"})
		return
	}

	var req syncPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
		return
	}

	res, err := s.sync.Post(c.Request.Context(), claims.Subject, claims.DeviceID, req.IDs)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "inserted": res.Inserted, "total": res.Total})
}

type syncListRequest struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// SyncList returns one page of the tenant's download history.
func (s *Server) SyncList(c *gin.Context) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "missing bearer token"})
		return
	}

	var req syncListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
		return
	}

	page, err := s.sync.List(c.Request.Context(), claims.Subject, claims.DeviceID, req.Offset, req.Limit)
	if err != nil {
		fail(c, err)
		return
	}

	ids := page.IDs
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"ids":         ids,
		"offset":      page.Offset,
		"limit":       page.Limit,
		"total":       page.Total,
		"next_offset": page.NextOffset,
	})
}

// fail maps service errors onto HTTP statuses. The detail strings stay
// generic so nothing sensitive leaks to clients.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid credentials"})
	case errors.Is(err, errs.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"detail": "rate limited"})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
	case errors.Is(err, errs.ErrInsufficientScope):
		c.JSON(http.StatusForbidden, gin.H{"detail": "insufficient scope"})
	case errors.Is(err, errs.ErrUpstream), errors.Is(err, errs.ErrCrypto), errors.Is(err, errs.ErrParse):
		c.JSON(http.StatusBadGateway, gin.H{"detail": "upstream token unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal"})
	}
}
