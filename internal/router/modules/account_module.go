package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/clinicore/authorization/internal/interface/http"
	"github.com/clinicore/authorization/internal/interface/middleware"
	"github.com/clinicore/authorization/pkg/helpers"
)

// AccountModule wires the account HTTP surface.
// Public: POST /sign-up, POST /sign-in, POST /refresh,
//         GET /confirm-email, GET /is-email-available
// Protected: GET /, GET /account-by-account-id-from-token,
//            POST /accounts-by-ids, GET /accounts/search, DELETE /log-out
type AccountModule struct {
	Handler *handlers.AccountHandler
	JWT     *helpers.JWTManager
}

func NewAccountModule(h *handlers.AccountHandler, jwt *helpers.JWTManager) *AccountModule {
	return &AccountModule{Handler: h, JWT: jwt}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	rg.POST("/sign-up", m.Handler.SignUp)
	rg.POST("/sign-in", m.Handler.SignIn)
	rg.POST("/refresh", m.Handler.Refresh)
	rg.GET("/confirm-email", m.Handler.ConfirmEmail)
	rg.GET("/is-email-available", m.Handler.IsEmailAvailable)

	// Token extraction verifies the presented token itself.
	rg.GET("/account-by-account-id-from-token", m.Handler.ByToken)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	{
		auth.GET("/", m.Handler.List)
		auth.POST("/accounts-by-ids", m.Handler.ByIDs)
		auth.GET("/accounts/search", m.Handler.Search)
		auth.DELETE("/log-out", m.Handler.LogOut)
	}
}
