package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"branchchat/service"
)

const userUIDKey = "UserUID"

// AuthController ...
type AuthController struct {
	tokens *service.TokenService
}

func NewAuthController(tokens *service.TokenService) *AuthController {
	return &AuthController{tokens: tokens}
}

// TokenValid aborts with 401 unless the request carries a valid access token.
func (a *AuthController) TokenValid(c *gin.Context) {
	tokenAuth, err := a.tokens.ExtractTokenMetadata(c.Request)
	if err != nil {
		//Token either expired or not valid
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please login first"})
		return
	}
	c.Set(userUIDKey, tokenAuth.UserUID)
}

// CurrentUserID is the only identity the conversation core needs.
func CurrentUserID(c *gin.Context) (string, bool) {
	uid := c.GetString(userUIDKey)
	return uid, uid != ""
}

// Refresh ...
func (a *AuthController) Refresh(c *gin.Context) {
	details, err := a.tokens.ParseToken(a.tokens.ExtractToken(c.Request))
	//if there is an error, the token must have expired
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization, please login again"})
		return
	}

	ts, err := a.tokens.CreateToken(details.UserUID)
	if err != nil {
		logger.Warnf("[%s] failed to create token, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid authorization, please login again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": ts.AccessToken})
}
