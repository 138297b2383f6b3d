package middlewares

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/patrickmn/go-cache"
)

// SessionUser is the profile stored at "User:<username>" by the login service.
type SessionUser struct {
	Username    string `json:"username"`
	DisplayName string `json:"name"`
	BusinessId  string `json:"business_id"`
	IsAdmin     bool   `json:"is_admin"`
}

// profiles is an in-process L1 in front of redis; display names rarely change.
var profiles = cache.New(5*time.Minute, 10*time.Minute)

func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		username, exists, err := config.GetRedisValue(ctx, "Token:"+token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		user, err := lookupSessionUser(ctx, username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx = utils.SetTokenInContext(ctx, token)
		c.Request = c.Request.WithContext(withSessionUser(ctx, user))
		c.Next()
	}
}

func lookupSessionUser(ctx context.Context, username string) (*SessionUser, error) {
	if cached, ok := profiles.Get(username); ok {
		return cached.(*SessionUser), nil
	}
	var user SessionUser
	exists, err := config.GetRedisObject(ctx, "User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if !exists {
		// token without a profile: the actor falls back to the username
		user = SessionUser{Username: username}
	}
	if user.Username == "" {
		user.Username = username
	}
	profiles.Set(username, &user, cache.DefaultExpiration)
	return &user, nil
}

func withSessionUser(ctx context.Context, user *SessionUser) context.Context {
	ctx = utils.SetUsernameInContext(ctx, user.Username)
	name := user.DisplayName
	if name == "" {
		name = user.Username
	}
	ctx = utils.SetUserNameInContext(ctx, name)
	if user.BusinessId != "" {
		ctx = utils.SetBusinessIdInContext(ctx, user.BusinessId)
	}
	return utils.SetIsAdminInContext(ctx, user.IsAdmin)
}
