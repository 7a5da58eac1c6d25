package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouterMountsVersionedGroups(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	fiscal := NewDomainGroup("fiscal", "/fiscal")
	fiscal.POST("/classify", func(c *gin.Context) {
		c.String(http.StatusOK, "classified")
	})

	admin := NewDomainGroup("admin", "/admin")
	admin.GET("/tables", func(c *gin.Context) {
		c.String(http.StatusOK, "tables")
	})

	r.Register(fiscal).Register(admin)
	r.Setup()

	req := httptest.NewRequest("POST", "/api/v1/fiscal/classify", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "classified", w.Body.String())

	req = httptest.NewRequest("GET", "/api/v1/admin/tables", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tables", w.Body.String())
}

func TestRouterAPIVersionPrefix(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	g := NewDomainGroup("system", "/system")
	g.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(g).Setup()

	req := httptest.NewRequest("GET", "/api/v2/system/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/api/v1/system/ping", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDomainGroupMiddlewareRunsBeforeRoutes(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("admin", "/admin")

	g.Use(func(c *gin.Context) {
		c.Header("X-Admin-Guard", "checked")
		c.Next()
	})
	g.POST("/reload", func(c *gin.Context) {
		c.String(http.StatusOK, "reloaded")
	})

	api := engine.Group("/api/v1")
	g.RegisterRoutes(api)

	req := httptest.NewRequest("POST", "/api/v1/admin/reload", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "checked", w.Header().Get("X-Admin-Guard"))
}

func TestDomainGroupChaining(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	g := NewDomainGroup("fiscal", "/fiscal")
	g.POST("/classify", func(c *gin.Context) { c.String(http.StatusOK, "one") }).
		POST("/classify/batch", func(c *gin.Context) { c.String(http.StatusOK, "batch") })

	r.Register(g).Setup()

	for _, path := range []string{"/api/v1/fiscal/classify", "/api/v1/fiscal/classify/batch"} {
		req := httptest.NewRequest("POST", path, nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "route %s should be mounted", path)
	}
}
