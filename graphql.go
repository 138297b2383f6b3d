package main

import (
	"context"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/graph"
	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/ravilushqa/otelgqlgen"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const apqPrefix = "apq:"

// Cache keeps automatic persisted queries in redis.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewCache(client redis.UniversalClient, ttl time.Duration) (*Cache, error) {
	if client == nil {
		return nil, utils.ErrorServiceNotReady
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) Add(ctx context.Context, key string, value interface{}) {
	c.client.Set(ctx, apqPrefix+key, value, c.ttl)
}

func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	s, err := c.client.Get(ctx, apqPrefix+key).Result()
	if err != nil {
		return struct{}{}, false
	}
	return s, true
}

// newGraphqlServer serves the owner, document and history schema.
func newGraphqlServer(resolver *graph.Resolver, logger *logrus.Logger) http.Handler {
	// APQ cache is optional; if Redis isn't ready we run without it.
	var cache *Cache
	if rdb := config.GetRedisDB(); rdb != nil {
		c, err := NewCache(rdb, 24*time.Hour)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field": "graphqlHandler",
			}).Warn("APQ redis cache disabled (redis not ready): " + err.Error())
		} else {
			cache = c
		}
	}

	h := handler.NewDefaultServer(graph.NewExecutableSchema(graph.Config{Resolvers: resolver}))
	h.Use(otelgqlgen.Middleware())
	h.AddTransport(transport.POST{})
	h.AddTransport(transport.MultipartForm{
		MaxMemory:     32 << 20, // 32 MB
		MaxUploadSize: 50 << 20, // 50 MB
	})
	if cache != nil {
		h.Use(extension.AutomaticPersistedQuery{Cache: cache})
	}
	return h
}

func (api *documentAPI) graphqlHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		api.graph.ServeHTTP(c.Writer, c.Request)
	}
}

// Defining the Playground handler
func playgroundHandler() gin.HandlerFunc {
	h := playground.Handler("GraphQL", "/api/query")

	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
