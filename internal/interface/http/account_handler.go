package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinicore/authorization/internal/application"
	"github.com/clinicore/authorization/internal/domain/entity"
	"github.com/clinicore/authorization/pkg/apperrors"
	"github.com/clinicore/authorization/pkg/helpers"
	"github.com/clinicore/authorization/pkg/response"
	"github.com/clinicore/authorization/pkg/validation"
)

type AccountHandler struct {
	Svc     *application.AccountService
	Logger  *logrus.Logger
	Cookies *helpers.CookieManager
}

func NewAccountHandler(svc *application.AccountService, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AccountHandler {
	return &AccountHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type signUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type accountsByIDsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,dive,uuid"`
}

type accountResponse struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	Role            string `json:"role"`
	IsEmailVerified bool   `json:"is_email_verified"`
	PhotoID         string `json:"photo_id,omitempty"`
}

func toAccountResponse(a *entity.Account) accountResponse {
	return accountResponse{
		ID:              a.ID,
		Email:           a.Email,
		PhoneNumber:     a.PhoneNumber,
		Role:            string(a.Role),
		IsEmailVerified: a.IsEmailVerified,
		PhotoID:         a.PhotoID,
	}
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// fail translates a domain error to the envelope without leaking internals.
func (h *AccountHandler) fail(c *gin.Context, err error) {
	status := apperrors.StatusCode(err)
	if status == http.StatusInternalServerError {
		h.Logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		response.Error(c, status, "internal error", nil)
		return
	}
	response.Error(c, status, err.Error(), apperrors.Details(err))
}

// SignUp POST /sign-up
func (h *AccountHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	account, pair, err := h.Svc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusCreated, gin.H{
		"account":       toAccountResponse(account),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "account created, check your email to confirm the address")
}

// SignIn POST /sign-in
func (h *AccountHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	account, pair, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.Logger.WithFields(logrus.Fields{"ip": clientIP(c)}).Info("sign-in rejected")
		h.fail(c, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"account":       toAccountResponse(account),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "signed in")
}

// Refresh POST /refresh — refresh token arrives via the HttpOnly cookie.
func (h *AccountHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil || refresh == "" {
		response.Error(c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	_, pair, err := h.Svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{"refreshed": true}, "token refreshed")
}

// ConfirmEmail GET /confirm-email?accountId=...&token=...
func (h *AccountHandler) ConfirmEmail(c *gin.Context) {
	accountID := c.Query("accountId")
	token := c.Query("token")
	if accountID == "" || token == "" {
		response.Error(c, http.StatusBadRequest, "accountId and token are required", nil)
		return
	}
	ok, err := h.Svc.ConfirmEmail(c.Request.Context(), accountID, token)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		response.Error(c, http.StatusBadRequest, "invalid confirmation token", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"confirmed": true}, "email confirmed")
}

// IsEmailAvailable GET /is-email-available?email=...
func (h *AccountHandler) IsEmailAvailable(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		response.Error(c, http.StatusBadRequest, "email is required", nil)
		return
	}
	available, err := h.Svc.IsEmailAvailable(c.Request.Context(), email)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"available": available}, "email availability")
}

// List GET /
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.Svc.GetAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	response.Success(c, http.StatusOK, out, "accounts")
}

// ByToken GET /account-by-account-id-from-token — subject comes from the
// verified Authorization header token.
func (h *AccountHandler) ByToken(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "missing access token", nil)
		return
	}
	account, err := h.Svc.GetByAccessToken(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, toAccountResponse(account), "account")
}

// ByIDs POST /accounts-by-ids
func (h *AccountHandler) ByIDs(c *gin.Context) {
	var req accountsByIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	accounts, err := h.Svc.GetByIDs(c.Request.Context(), req.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	response.Success(c, http.StatusOK, out, "accounts")
}

// Search GET /accounts/search?q=...
func (h *AccountHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.Error(c, http.StatusBadRequest, "q is required", nil)
		return
	}
	hits, err := h.Svc.SearchAccounts(c.Request.Context(), q, 10)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results")
}

// LogOut DELETE /log-out — the server tracks no session beyond the stored
// refresh token; clearing cookies ends the client's session.
func (h *AccountHandler) LogOut(c *gin.Context) {
	h.Cookies.Clear(c)
	response.Success(c, http.StatusOK, gin.H{"logged_out": true}, "logged out")
}
