package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"caidasapi/internal/apperr"
	"caidasapi/internal/middleware"
	"caidasapi/internal/observability"
)

// SessionCookieName names the session cookie.
const SessionCookieName = "caidas_session"

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CookieSecret string
	SecureCookie bool
	// RequireLogin guards /perfil, /imagenes, /caidas and /estadisticas with a session.
	RequireLogin bool
	Metrics      *observability.Metrics
	// MediaDir, when set, is served under MediaPrefix.
	MediaDir    string
	MediaPrefix string
}

// NewRouter wires middleware and routes.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	useJSONFieldNames()

	router := gin.New()
	// Behind no proxy by default; ClientIP uses the socket address.
	_ = router.SetTrustedProxies(nil)
	router.MaxMultipartMemory = 8 << 20

	store := cookie.NewStore([]byte(opts.CookieSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(h.logger),
		middleware.Metrics(opts.Metrics),
		sessions.Sessions(SessionCookieName, store),
	)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: errorDetail{Code: apperr.KindNotFound, Message: "route not found"}})
	})

	router.GET("/", h.Index)
	router.GET("/test", h.Test)
	router.POST("/registro", h.Register)
	router.POST("/login", h.Login)
	router.POST("/logout", h.Logout)

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	if opts.MediaDir != "" && opts.MediaPrefix != "" {
		router.Static(opts.MediaPrefix, opts.MediaDir)
	}

	api := router.Group("/")
	if opts.RequireLogin {
		api.Use(middleware.AuthRequired(h.logger))
	}
	{
		api.GET("/perfil", h.GetProfile)
		api.PUT("/perfil", h.UpdateProfile)

		api.POST("/imagenes", h.UploadImage)
		api.GET("/imagenes", h.ListImages)

		api.POST("/caidas", h.CreateEvent)
		api.GET("/caidas", h.ListEvents)
		api.GET("/caidas/:id", h.GetEvent)

		api.GET("/estadisticas", h.Stats)
	}

	return router
}
