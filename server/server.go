package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/wfunc/hideseek/logger"
	"github.com/wfunc/hideseek/monitor"
	"github.com/wfunc/hideseek/services"
)

// PlayerHeader carries the caller's asserted player id.
const PlayerHeader = "X-Player-ID"

type Options struct {
	HTTPAddress       string
	AllowedOrigins    []string
	RequestsPerSecond float64
	Burst             int
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is believed.
	// Empty means the client address is always the TCP peer.
	TrustedProxies []string
}

type GameServer struct {
	addr    string
	engine  *gin.Engine
	http    *http.Server
	svc     *services.Service
	monitor *monitor.Monitor
	limiter *ipLimiter
}

func NewGameServer(opts Options, svc *services.Service, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		addr:    opts.HTTPAddress,
		engine:  gin.New(),
		svc:     svc,
		monitor: mon,
		limiter: newIPLimiter(opts.RequestsPerSecond, opts.Burst),
	}

	if err := s.engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		logger.Log.Errorw("invalid trusted proxies, trusting none", "proxies", opts.TrustedProxies, "error", err)
		_ = s.engine.SetTrustedProxies(nil)
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.engine.Use(cors.New(corsConfig(opts.AllowedOrigins)))
	s.engine.Use(s.rateLimit())
	s.registerRoutes()

	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Origin", PlayerHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *GameServer) registerRoutes() {
	r := s.engine
	r.GET("/health", s.health)
	r.POST("/photos", s.createPhoto)

	games := r.Group("/games")
	games.POST("", s.createGame)

	game := games.Group("/:gameID")
	game.GET("", s.getGame)
	game.PATCH("", s.updateGame)

	game.POST("/players", s.joinGame)
	game.PATCH("/players/:playerID", s.renamePlayer)
	game.DELETE("/players/:playerID", s.leaveGame)
	game.POST("/players/:playerID/withdraw", s.withdrawPlayer)
	game.PUT("/players/:playerID/hiding-photo", s.lockIn)
	game.GET("/players/:playerID/landmarks", s.listLandmarks)
	game.GET("/players/:playerID/landmarks/:type", s.getLandmark)
	game.PUT("/players/:playerID/landmarks/:type", s.setLandmark)

	game.POST("/submissions", s.submit)
	game.GET("/submissions", s.listSubmissions)

	game.POST("/hints", s.castHint)
	game.GET("/hints", s.listHints)
	game.POST("/hints/:hintID/complete", s.completeHint)
	game.POST("/hints/:hintID/cancel", s.cancelHint)
	game.POST("/hints/:hintID/reading", s.thermometerReading)

	game.POST("/pings", s.recordPing)
	game.GET("/pings", s.latestPings)
}

// Handler exposes the engine, mainly for tests.
func (s *GameServer) Handler() http.Handler {
	return s.engine
}

// Start serves HTTP until Shutdown is called.
func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
