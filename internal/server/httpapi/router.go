package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telany/faxrelay/internal/service"
	"github.com/telany/faxrelay/internal/token"
)

// Deps carries everything the router wires together.
type Deps struct {
	Server   *Server
	Admin    *Admin
	Issuer   *token.Issuer
	AdminKey string
	Logger   *zap.Logger
}

// NewRouter assembles the gin engine with all endpoints and middleware.
func NewRouter(deps Deps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(Recover(log))
	r.Use(Logging(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	r.POST("/init", deps.Server.Init)

	authed := r.Group("/")
	authed.Use(RequireToken(deps.Issuer))
	authed.POST("/bearer", RequireScope(service.ScopeBearerRequest), deps.Server.Bearer)

	syncGroup := authed.Group("/sync")
	syncGroup.Use(RequireScope(service.ScopeHistorySync))
	syncGroup.POST("/post", deps.Server.SyncPost)
	syncGroup.POST("/list", deps.Server.SyncList)

	admin := r.Group("/admin")
	admin.Use(RequireAdminKey(deps.AdminKey))
	admin.POST("/tenants", deps.Admin.CreateTenant)
	admin.GET("/tenants", deps.Admin.ListTenants)
	admin.POST("/tenants/:uuid/active", deps.Admin.SetTenantActive)
	admin.DELETE("/tenants/:uuid", deps.Admin.DeleteTenant)
	admin.PUT("/resellers/:id", deps.Admin.UpsertReseller)
	admin.DELETE("/resellers/:id", deps.Admin.DeleteReseller)

	return r
}
