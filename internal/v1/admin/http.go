// Package admin implements the HTTP and stdin-console operator surfaces over
// the same room table and security store the protocol handler uses,
// following the teacher's gin-router-plus-middleware-chain shape (cors,
// recovery, otelgin tracing, rate limiting) adapted to JWT-bearer admin auth
// instead of Auth0 end-user auth.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rymc/roomserver/internal/v1/protocol/wire"
	"github.com/rymc/roomserver/internal/v1/room"
	"github.com/rymc/roomserver/internal/v1/security"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Server is the admin HTTP surface: room listing/control and security-store
// management, all backed by the same *room.Table and *security.Store the
// protocol server mutates.
type Server struct {
	router *gin.Engine
	table  *room.Table
	sec    *security.Store
	log    *zap.Logger
}

// New builds the admin HTTP router. jwtSecret signs/verifies the bearer
// token every request must carry; rateLimit is a ulule/limiter formatted
// rate string such as "100-M".
func New(table *room.Table, sec *security.Store, jwtSecret string, rateLimit string, log *zap.Logger) (*Server, error) {
	rate, err := limiter.NewRateFromFormatted(rateLimit)
	if err != nil {
		return nil, err
	}
	limiterMiddleware := mgin.NewMiddleware(limiter.New(memory.NewStore(), rate))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("roomserver-admin"))
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	router.Use(cors.New(corsCfg))
	router.Use(limiterMiddleware)

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s := &Server{router: router, table: table, sec: sec, log: log}

	authed := router.Group("/admin")
	authed.Use(s.requireAdminToken(jwtSecret))
	{
		authed.GET("/rooms", s.listRooms)
		authed.GET("/rooms/:id", s.getRoom)
		authed.POST("/rooms/:id/maxusers", s.setMaxUsers)
		authed.POST("/rooms/:id/disband", s.disbandRoom)
		authed.POST("/rooms/:id/broadcast", s.broadcastToRoom)
		authed.POST("/rooms/:id/kick", s.kickUser)
		authed.POST("/rooms/:id/contest", s.setContestMode)
		authed.GET("/bans", s.listBans)
		authed.POST("/bans", s.addBan)
		authed.DELETE("/bans", s.removeBan)
		authed.GET("/blacklist", s.listBlacklist)
		authed.POST("/blacklist", s.addBlacklist)
		authed.DELETE("/blacklist", s.removeBlacklist)
	}

	return s, nil
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) requireAdminToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := header[len(prefix):]
		_, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}

func (s *Server) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": s.table.Rooms()})
}

func (s *Server) getRoom(c *gin.Context) {
	rm, err := s.table.Room(c.Param("id"))
	if !err.IsOK() {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rm.Snapshot())
}

func (s *Server) setMaxUsers(c *gin.Context) {
	var body struct {
		Max int `json:"max"`
	}
	if bindErr := c.BindJSON(&body); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}
	if err := s.table.SetMaxUsers(c.Param("id"), body.Max); !err.IsOK() {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) disbandRoom(c *gin.Context) {
	if err := s.table.DestroyRoom(c.Param("id")); !err.IsOK() {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) broadcastToRoom(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
	}
	if bindErr := c.BindJSON(&body); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}
	packet := wire.ClientBoundMessage{Body: wire.ChatMessage{SenderID: 0, SenderName: "admin", Text: body.Text}}
	if err := s.table.Broadcast(c.Param("id"), packet, nil); !err.IsOK() {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) kickUser(c *gin.Context) {
	var body struct {
		UserID int32 `json:"userId"`
	}
	if bindErr := c.BindJSON(&body); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}
	result, err := s.table.RemoveUser(c.Param("id"), body.UserID)
	if !err.IsOK() {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if !result.RoomDestroyed && result.HostChanged {
		if conn, ok := s.table.OnlineConnection(result.NewHostID); ok {
			conn.Send(wire.ClientBoundChangeHost{IsHost: true})
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setContestMode(c *gin.Context) {
	var body struct {
		Enabled   bool    `json:"enabled"`
		Whitelist []int32 `json:"whitelist"`
	}
	if bindErr := c.BindJSON(&body); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}
	if err := s.table.SetContestMode(c.Param("id"), body.Enabled, body.Whitelist); !err.IsOK() {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listBans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bans": s.sec.ListBans()})
}

func (s *Server) addBan(c *gin.Context) {
	var body struct {
		Type     string `json:"type"`
		Target   string `json:"target"`
		TTLSecs  int64  `json:"ttlSeconds"`
		Reason   string `json:"reason"`
	}
	if bindErr := c.BindJSON(&body); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}
	if err := s.sec.AddBan(security.BanType(body.Type), body.Target, time.Duration(body.TTLSecs)*time.Second, body.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) removeBan(c *gin.Context) {
	var body struct {
		Type   string `json:"type"`
		Target string `json:"target"`
	}
	if bindErr := c.BindJSON(&body); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}
	if err := s.sec.RemoveBan(security.BanType(body.Type), body.Target); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listBlacklist(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"blacklist": s.sec.ListBlacklistIPs()})
}

func (s *Server) addBlacklist(c *gin.Context) {
	var body struct {
		IP      string `json:"ip"`
		TTLSecs int64  `json:"ttlSeconds"`
	}
	if bindErr := c.BindJSON(&body); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}
	if err := s.sec.AddBlacklistIP(body.IP, time.Duration(body.TTLSecs)*time.Second); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) removeBlacklist(c *gin.Context) {
	var body struct {
		IP string `json:"ip"`
	}
	if bindErr := c.BindJSON(&body); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}
	if err := s.sec.RemoveBlacklistIP(body.IP); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
