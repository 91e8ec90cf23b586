package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/telany/faxrelay/internal/audit"
	"github.com/telany/faxrelay/internal/faxuser"
	"github.com/telany/faxrelay/internal/model"
	"github.com/telany/faxrelay/internal/repository"
	"github.com/telany/faxrelay/internal/vault"
)

// Admin exposes operator CRUD over tenants and vaulted reseller
// credentials. Secrets always pass through the vault; plaintext is never
// persisted or logged.
type Admin struct {
	tenants   repository.TenantRepository
	resellers repository.ResellerRepository
	vault     *vault.Vault
	rec       *audit.Recorder
}

// NewAdmin constructs the admin handler set.
func NewAdmin(tenants repository.TenantRepository, resellers repository.ResellerRepository, vlt *vault.Vault, rec *audit.Recorder) *Admin {
	if rec == nil {
		rec = audit.NewRecorder(nil)
	}
	return &Admin{tenants: tenants, resellers: resellers, vault: vlt, rec: rec}
}

type createTenantRequest struct {
	FaxUser       string   `json:"fax_user" binding:"required"`
	AuthToken     string   `json:"auth_token" binding:"required"`
	AllFaxNumbers []string `json:"all_fax_numbers"`
}

type tenantView struct {
	DomainUUID    string   `json:"domain_uuid"`
	FaxUser       string   `json:"fax_user"`
	Active        bool     `json:"active"`
	AllFaxNumbers []string `json:"all_fax_numbers"`
	KnownDevices  []string `json:"known_devices"`
}

func viewOf(t *model.Tenant) tenantView {
	return tenantView{
		DomainUUID:    t.DomainUUID.String(),
		FaxUser:       t.FaxUser,
		Active:        t.Active,
		AllFaxNumbers: t.AllFaxNumbers,
		KnownDevices:  t.KnownDevices,
	}
}

// CreateTenant registers a new tenant, active by default.
func (a *Admin) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
		return
	}
	domain := faxuser.Domain(req.FaxUser)
	if _, err := faxuser.ResellerID(domain); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unresolvable fax_user"})
		return
	}

	t := &model.Tenant{
		DomainUUID:    uuid.Must(uuid.NewV4()),
		FaxUser:       domain,
		AuthToken:     req.AuthToken,
		Active:        true,
		AllFaxNumbers: req.AllFaxNumbers,
		CreatedAt:     time.Now().UTC(),
	}
	if err := a.tenants.Create(c.Request.Context(), t); err != nil {
		fail(c, err)
		return
	}

	a.rec.Event(audit.TenantCreated,
		audit.Tenant(t.DomainUUID),
		audit.Op("tenant", "create"),
		zap.String("fax_user", t.FaxUser),
	)
	c.JSON(http.StatusCreated, viewOf(t))
}

// ListTenants returns all tenants without secrets.
func (a *Admin) ListTenants(c *gin.Context) {
	tenants, err := a.tenants.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	views := make([]tenantView, 0, len(tenants))
	for i := range tenants {
		views = append(views, viewOf(&tenants[i]))
	}
	c.JSON(http.StatusOK, gin.H{"tenants": views})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetTenantActive toggles a tenant on or off.
func (a *Admin) SetTenantActive(c *gin.Context) {
	id, err := uuid.FromString(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid tenant uuid"})
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
		return
	}

	if err := a.tenants.SetActive(c.Request.Context(), id, *req.Active); err != nil {
		fail(c, err)
		return
	}
	a.rec.Event(audit.TenantToggled,
		audit.Tenant(id),
		audit.Op("tenant", "set_active"),
		zap.Bool("active", *req.Active),
	)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeleteTenant removes a tenant and its device directory.
func (a *Admin) DeleteTenant(c *gin.Context) {
	id, err := uuid.FromString(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid tenant uuid"})
		return
	}
	if err := a.tenants.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	a.rec.Event(audit.TenantDeleted, audit.Tenant(id), audit.Op("tenant", "delete"))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// UpsertReseller seals the posted credentials into the vault under the
// reseller id.
func (a *Admin) UpsertReseller(c *gin.Context) {
	id := c.Param("id")
	var creds model.ResellerCredentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
		return
	}
	if creds.MsgAPIUser == "" || creds.MsgAPIPassword == "" || creds.VoiceAPIUser == "" || creds.VoiceAPIPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "all four credential fields are required"})
		return
	}

	env, err := a.vault.Encrypt(id, creds)
	if err != nil {
		fail(c, err)
		return
	}
	if err := a.resellers.Save(c.Request.Context(), id, env); err != nil {
		fail(c, err)
		return
	}

	a.rec.Event(audit.EnvelopeSaved,
		zap.String("reseller_id", id),
		audit.Op("reseller_credentials", "upsert"),
	)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeleteReseller drops a reseller's vaulted credentials.
func (a *Admin) DeleteReseller(c *gin.Context) {
	id := c.Param("id")
	if err := a.resellers.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	a.rec.Event(audit.EnvelopeDeleted,
		zap.String("reseller_id", id),
		audit.Op("reseller_credentials", "delete"),
	)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
