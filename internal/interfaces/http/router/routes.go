package router

import (
	"github.com/gin-gonic/gin"

	"github.com/catalogsync/backend/internal/interfaces/http/handler"
)

// SyncRoutes exposes push, pull and ledger operations under /sync.
// singleProduct middleware (typically a request deadline) wraps the routes
// that touch one product; bulk pushes run without it.
//
//	GET    /sync/platforms
//	POST   /sync/:platform/push
//	POST   /sync/:platform/import
//	GET    /sync/:platform/records
//	POST   /sync/:platform/products/:id/push
//	POST   /sync/:platform/products/:id/pull
//	DELETE /sync/:platform/products/:id
func SyncRoutes(h *handler.SyncHandler, singleProduct ...gin.HandlerFunc) *DomainGroup {
	sync := NewDomainGroup("sync", "/sync")
	sync.GET("/platforms", h.ListPlatforms)

	importChain := append(append([]gin.HandlerFunc{}, singleProduct...), h.ImportProduct)
	platform := sync.Group("platform", "/:platform")
	platform.
		POST("/push", h.BulkPush).
		POST("/import", importChain...).
		GET("/records", h.ListRecords)

	platform.Group("products", "/products/:id").
		Use(singleProduct...).
		POST("/push", h.PushProduct).
		POST("/pull", h.PullProduct).
		DELETE("", h.ForgetRecord)

	return sync
}

// HealthRoutes mounts the liveness and readiness checks at /health
func HealthRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("health", "/health").
		GET("/ping", h.Ping).
		GET("/ready", h.Ready)
}

// SystemRoutes mounts service metadata under /system
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/info", h.GetSystemInfo)
}
