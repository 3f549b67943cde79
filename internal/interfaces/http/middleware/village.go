package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// VillageContextKey is the key used to store village information in gin.Context
const (
	VillageIDKey     = "village_id"
	VillageCodeKey   = "village_code"
	VillageHeaderKey = "X-Village-ID"
)

// VillageInfo holds the extracted village information
type VillageInfo struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

// VillageExtractor defines the interface for extracting village information
type VillageExtractor interface {
	ExtractVillageID(c *gin.Context) (string, error)
}

// VillageValidator defines the interface for validating village
type VillageValidator interface {
	ValidateVillage(villageID string) (*VillageInfo, error)
}

// VillageMiddlewareConfig holds configuration for village middleware
type VillageMiddlewareConfig struct {
	// HeaderEnabled enables X-Village-ID header extraction
	HeaderEnabled bool
	// JWTEnabled enables JWT claim extraction (requires JWT middleware to run first)
	JWTEnabled bool
	// SubdomainEnabled enables subdomain extraction
	SubdomainEnabled bool
	// BaseDomain is the base domain for subdomain extraction (e.g., "smartvillage.app")
	BaseDomain string
	// SkipPaths are paths that don't require village context (e.g., health check)
	SkipPaths []string
	// Required determines if village context is mandatory
	Required bool
	// Validator is an optional validator to check if village exists and is active
	Validator VillageValidator
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultVillageConfig returns default village middleware configuration
func DefaultVillageConfig() VillageMiddlewareConfig {
	return VillageMiddlewareConfig{
		HeaderEnabled:    true,
		JWTEnabled:       true,
		SubdomainEnabled: false,
		BaseDomain:       "",
		SkipPaths:        []string{"/health", "/healthz", "/ready", "/metrics", "/api/v1/health"},
		Required:         true,
		Validator:        nil,
		Logger:           nil,
	}
}

// VillageMiddleware extracts village information from the request
// Extraction order: JWT claims > X-Village-ID header > subdomain
func VillageMiddleware() gin.HandlerFunc {
	return VillageMiddlewareWithConfig(DefaultVillageConfig())
}

// VillageMiddlewareWithConfig returns village middleware with custom configuration
func VillageMiddlewareWithConfig(cfg VillageMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check if path should be skipped
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		var villageID string
		var extractionMethod string

		// Priority 1: JWT claims (if JWT middleware has already run)
		if cfg.JWTEnabled {
			if jwtVillageID, exists := c.Get("jwt_village_id"); exists {
				if tid, ok := jwtVillageID.(string); ok && tid != "" {
					villageID = tid
					extractionMethod = "jwt"
				}
			}
		}

		// Priority 2: X-Village-ID header
		if villageID == "" && cfg.HeaderEnabled {
			if headerVillageID := c.GetHeader(VillageHeaderKey); headerVillageID != "" {
				villageID = headerVillageID
				extractionMethod = "header"
			}
		}

		// Priority 3: Subdomain extraction
		if villageID == "" && cfg.SubdomainEnabled && cfg.BaseDomain != "" {
			if subdomainVillageID := extractVillageFromSubdomain(c.Request.Host, cfg.BaseDomain); subdomainVillageID != "" {
				villageID = subdomainVillageID
				extractionMethod = "subdomain"
			}
		}

		// Validate village ID format if present
		if villageID != "" {
			if err := validateVillageIDFormat(villageID); err != nil {
				respondUnauthorized(c, "Invalid village ID format")
				return
			}
		}

		// Check if village is required
		if villageID == "" && cfg.Required {
			respondUnauthorized(c, "Village identification required")
			return
		}

		// Optional: Validate village exists and is active
		var villageInfo *VillageInfo
		if villageID != "" && cfg.Validator != nil {
			var err error
			villageInfo, err = cfg.Validator.ValidateVillage(villageID)
			if err != nil {
				log := cfg.Logger
				if log == nil {
					log = logger.FromContext(c.Request.Context())
				}
				log.Warn("Village validation failed",
					zap.String("village_id", villageID),
					zap.Error(err),
				)
				respondUnauthorized(c, "Invalid or inactive village")
				return
			}
		}

		// Set village information in context
		if villageID != "" {
			// Set in gin context for easy access in handlers
			c.Set(VillageIDKey, villageID)
			if villageInfo != nil {
				c.Set(VillageCodeKey, villageInfo.Code)
			}

			// Set in request context for service layer access
			ctx := c.Request.Context()
			log := logger.FromContext(ctx)
			ctx, _ = logger.WithVillageID(ctx, log, villageID)
			c.Request = c.Request.WithContext(ctx)

			// Log extraction method for debugging
			if cfg.Logger != nil {
				cfg.Logger.Debug("Village identified",
					zap.String("village_id", villageID),
					zap.String("method", extractionMethod),
				)
			}
		}

		c.Next()
	}
}

// extractVillageFromSubdomain extracts village code from subdomain
// e.g., "moobaan.smartvillage.app" with baseDomain "smartvillage.app" returns "moobaan"
func extractVillageFromSubdomain(host, baseDomain string) string {
	// Remove port if present
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	// Check if host ends with base domain
	if !strings.HasSuffix(host, baseDomain) {
		return ""
	}

	// Extract subdomain
	subdomain := strings.TrimSuffix(host, "."+baseDomain)
	if subdomain == host || subdomain == "" || subdomain == "www" {
		return ""
	}

	// Return the first part of subdomain (in case of multi-level subdomains)
	parts := strings.Split(subdomain, ".")
	return parts[0]
}

// validateVillageIDFormat validates that the village ID is a valid UUID
func validateVillageIDFormat(villageID string) error {
	_, err := uuid.Parse(villageID)
	return err
}

// respondUnauthorized sends an unauthorized response
func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}

// GetVillageID retrieves the village ID from gin.Context
func GetVillageID(c *gin.Context) string {
	if villageID, exists := c.Get(VillageIDKey); exists {
		if tid, ok := villageID.(string); ok {
			return tid
		}
	}
	return ""
}

// GetVillageUUID retrieves the village ID as UUID from gin.Context
func GetVillageUUID(c *gin.Context) (uuid.UUID, error) {
	villageID := GetVillageID(c)
	if villageID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(villageID)
}

// GetVillageCode retrieves the village code from gin.Context
func GetVillageCode(c *gin.Context) string {
	if villageCode, exists := c.Get(VillageCodeKey); exists {
		if code, ok := villageCode.(string); ok {
			return code
		}
	}
	return ""
}

// MustGetVillageID retrieves the village ID from gin.Context or panics if not found
// Use this only in handlers where village is guaranteed to exist
func MustGetVillageID(c *gin.Context) string {
	villageID := GetVillageID(c)
	if villageID == "" {
		panic("village_id not found in context")
	}
	return villageID
}

// MustGetVillageUUID retrieves the village ID as UUID or panics if not found
func MustGetVillageUUID(c *gin.Context) uuid.UUID {
	villageUUID, err := GetVillageUUID(c)
	if err != nil || villageUUID == uuid.Nil {
		panic("valid village_id not found in context")
	}
	return villageUUID
}

// OptionalVillageMiddleware creates middleware that doesn't require village
func OptionalVillageMiddleware() gin.HandlerFunc {
	cfg := DefaultVillageConfig()
	cfg.Required = false
	return VillageMiddlewareWithConfig(cfg)
}
