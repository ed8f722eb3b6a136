// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/handlers"
	"github.com/amirphl/leadflow/app/middleware"
	"github.com/amirphl/leadflow/config"
	_ "github.com/amirphl/leadflow/docs"
	"github.com/amirphl/leadflow/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app                 *fiber.App
	cfg                 *config.ProductionConfig
	authMiddleware      *middleware.AuthMiddleware
	leadHandler         handlers.LeadHandlerInterface
	conversionHandler   handlers.ConversionHandlerInterface
	reasonDialogHandler handlers.ReasonDialogHandlerInterface
	sessionHandler      *handlers.SessionHandler
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	authMiddleware *middleware.AuthMiddleware,
	leadHandler handlers.LeadHandlerInterface,
	conversionHandler handlers.ConversionHandlerInterface,
	reasonDialogHandler handlers.ReasonDialogHandlerInterface,
	sessionHandler *handlers.SessionHandler,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Leadflow API",
		ServerHeader: "Leadflow",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:                 app,
		cfg:                 cfg,
		authMiddleware:      authMiddleware,
		leadHandler:         leadHandler,
		conversionHandler:   conversionHandler,
		reasonDialogHandler: reasonDialogHandler,
		sessionHandler:      sessionHandler,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	api := r.app.Group("/api/v1")

	// Health check and metrics are not rate limited
	api.Get("/health", r.healthCheck)
	if r.cfg.Metrics.Enabled {
		api.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	if env := r.cfg.Deployment.Environment; env == "development" || env == "local" {
		api.Get("/swagger.json", r.serveSwaggerJSON)
		log.Println("API documentation enabled for development")
	}

	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
	}))

	// Token rotation with stricter rate limiting
	session := api.Group("/session")
	session.Post("/refresh", limiter.New(limiter.Config{
		Max:        r.cfg.Security.AuthRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
	}), r.sessionHandler.Refresh)
	session.Post("/logout", r.authMiddleware.Authenticate(), r.sessionHandler.Logout)

	protected := api.Group("", r.authMiddleware.Authenticate())

	leads := protected.Group("/leads")
	leads.Get("/", r.leadHandler.ListLeads)
	leads.Get("/export", r.leadHandler.ExportLeads)
	leads.Post("/", r.leadHandler.CreateLead)
	leads.Get("/:id", r.leadHandler.GetLead)
	leads.Put("/:id", r.leadHandler.UpdateLead)
	leads.Post("/:id/assign", r.leadHandler.AssignLead)
	leads.Post("/:id/transitions", r.leadHandler.TransitionLead)
	leads.Get("/:id/transitions", r.leadHandler.GetTransitionHistory)
	leads.Post("/:id/follow-ups", r.leadHandler.AddFollowUp)
	leads.Get("/:id/call-history", r.leadHandler.GetCallHistory)
	leads.Post("/:id/convert", r.conversionHandler.SubmitConversion)

	leads.Post("/:id/reason-dialog", r.reasonDialogHandler.Open)
	leads.Put("/:id/reason-dialog", r.reasonDialogHandler.Choose)
	leads.Delete("/:id/reason-dialog", r.reasonDialogHandler.Cancel)
	leads.Post("/:id/reason-dialog/submit", r.reasonDialogHandler.Submit)

	documents := protected.Group("/documents")
	documents.Get("/", r.conversionHandler.OpenDocument)
	documents.Get("/url", r.conversionHandler.DocumentURL)

	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             r.cfg.Security.XSSProtection,
		ContentTypeNosniff:        r.cfg.Security.XContentTypeOptions,
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                r.cfg.Security.HSTSMaxAge,
		HSTSExcludeSubdomains:     !r.cfg.Security.HSTSIncludeSubDoms,
		HSTSPreloadEnabled:        r.cfg.Security.HSTSPreload,
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// documents are already compressed formats
				return strings.HasPrefix(c.Path(), "/api/v1/documents")
			},
		}))
	}

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(r.securityMiddleware)

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// securityMiddleware enforces the configured IP allow and block lists
func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))

	clientIP := c.IP()
	for _, blockedIP := range r.cfg.Security.IPBlacklist {
		if clientIP == blockedIP {
			return accessDenied(c)
		}
	}
	if len(r.cfg.Security.IPWhitelist) > 0 {
		allowed := false
		for _, ip := range r.cfg.Security.IPWhitelist {
			if clientIP == ip {
				allowed = true
				break
			}
		}
		if !allowed && c.Path() != "/api/v1/health" {
			return accessDenied(c)
		}
	}

	return c.Next()
}

func accessDenied(c fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
		Success: false,
		Message: "Access denied from this IP address",
		Error: dto.ErrorDetail{
			Code: "ACCESS_DENIED",
		},
	})
}

func rateLimitReached(c fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
		Success: false,
		Message: "Too many requests. Please try again later.",
		Error: dto.ErrorDetail{
			Code: "RATE_LIMIT_EXCEEDED",
		},
	})
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "leadflow-api",
		},
	})
}

// serveSwaggerJSON returns the registered OpenAPI document
func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error: dto.ErrorDetail{
				Code: "SWAGGER_LOAD_ERROR",
			},
		})
	}

	c.Set("Content-Type", "application/json")
	return c.SendString(doc)
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// errorHandler renders errors that escaped the handlers
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errorCode = "REQUEST_ERROR"
		}
	}

	log.Printf("Error %d: %v", code, err)

	requestID := c.Locals("requestid")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
