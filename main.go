package main

import (
	"context"
	"time"

	_uuid "github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/gin-gonic/gin"

	"branchchat/controller"
	"branchchat/model"
	"branchchat/platform"
	"branchchat/service"
)

var logger = platform.Logger

// CORSMiddleware ...
// CORS (Cross-Origin Resource Sharing)
func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, UPDATE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, Origin, Authorization, Accept, Client-Security-Token, Accept-Encoding, x-access-token")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
		} else {
			c.Next()
		}
	}
}

// RequestIDMiddleware ...
// Generate a unique ID and attach it to each request for future reference or use
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uuid := _uuid.New()
		c.Writer.Header().Set("X-Request-Id", uuid.String())
		c.Set("requestId", uuid.String())
		c.Next()
	}
}

func LogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		if raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		logger.Infof(
			" [%s] %d | %v | %s | %s | %s | %s ",
			c.GetString("requestId"),
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
			c.Request.Method,
			path,
			c.Request.UserAgent(),
		)
	}
}

// TokenAuthMiddleware ...
// JWT Authentication middleware attached to each request that needs to be authenitcated to
// validate the access_token in the header
func TokenAuthMiddleware(auth *controller.AuthController) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth.TokenValid(c)
		c.Next()
	}
}

func newInvoker(ctx context.Context, config platform.LLMConfig) service.Invoker {
	if config.Provider == platform.ProviderGemini {
		client, err := platform.NewGeminiClient(ctx, config)
		if err != nil {
			logger.Fatalf("Failed to initialize gemini client: %v", err)
		}
		return service.NewGeminiInvoker(client, config.Model)
	}
	return service.NewOpenAIInvoker(platform.NewOpenAIClient(config), config.Model)
}

func main() {
	config := platform.LoadConfig(".env")
	platform.InitAppLogger(config.LogPath, "branchchat", logrus.InfoLevel)
	logger.Infof("Server starting on :%s", config.Port)

	//init database
	db, err := platform.OpenDB(config.SQL)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if err := model.InstallDB(db); err != nil {
		logger.Fatalf("%v", err)
	}
	if err := model.SeedDefaults(db, config.GuestPlanID, config.LLM.Model); err != nil {
		logger.Fatalf("%v", err)
	}
	store := model.NewStore(db)

	ctx := context.Background()
	tokens := service.NewTokenService(config.AccessSecret, 0)
	quota := service.NewQuotaService(store, logger)
	sessions := service.NewSessionRegistry()
	turns := service.NewTurnService(store, newInvoker(ctx, config.LLM), quota, sessions, logger, service.TurnConfig{
		SystemPrompt: config.SystemPrompt(),
		ModelName:    config.LLM.Model,
		Timeout:      config.LLM.Timeout,
	})
	users := service.NewUserService(store, tokens, config.GuestPlanID, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(config.CORSOrigin))
	r.Use(RequestIDMiddleware())
	r.Use(LogMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := controller.NewAuthController(tokens)
	authed := TokenAuthMiddleware(auth)

	v1 := r.Group("/v1")
	{
		user := controller.NewUserController(users)
		v1.POST("/user/guest", user.Guest)
		v1.POST("/user/register", user.Register)
		v1.POST("/user/login", user.Login)
		v1.POST("/user/upgrade", authed, user.Upgrade)

		//Refresh the token
		v1.POST("/token/refresh", auth.Refresh)

		chat := controller.NewChatController(turns, quota)
		v1.GET("/conversation", authed, chat.Conversation)
		v1.POST("/conversation/reload", authed, chat.Reload)
		v1.POST("/messages", authed, chat.Submit)
		v1.POST("/messages/:id/actions", authed, chat.Action)
		v1.POST("/messages/:id/retry", authed, chat.Retry)
		v1.POST("/messages/:id/selection", authed, chat.Select)
		v1.POST("/messages/:id/detail", authed, chat.Detail)
		v1.GET("/messages/:id/render", authed, chat.Render)
		v1.GET("/settings", authed, chat.Settings)
		v1.PUT("/settings", authed, chat.UpdateSettings)
		v1.GET("/gems", authed, chat.Gems)

		thread := controller.NewThreadController(turns)
		v1.DELETE("/threads/:id", authed, thread.Delete)
		v1.PUT("/threads/:id/archive", authed, thread.Archive)
		v1.GET("/archives", authed, thread.Archives)
		v1.PUT("/history-target", authed, thread.SetHistoryTarget)
		v1.DELETE("/history-target", authed, thread.ClearHistoryTarget)
	}

	c := cron.New()
	purge := service.NewPurgeTask(store, quota, config.PurgeRetention, logger)
	if _, err := purge.Schedule(c, config.PurgeSchedule); err != nil {
		logger.Fatalf("%v", err)
	}
	c.Start()
	defer c.Stop()

	if err := r.Run(":" + config.Port); err != nil {
		logger.Fatalf("server stopped: %v", err)
	}
}
