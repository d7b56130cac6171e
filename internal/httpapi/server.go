// Package httpapi exposes the match service over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"github.com/park285/padel-scoreboard/internal/matchstore"
	"github.com/park285/padel-scoreboard/internal/matchsvc"
	"github.com/park285/padel-scoreboard/internal/msgcat"
	"github.com/park285/padel-scoreboard/internal/obslog"
	"github.com/park285/padel-scoreboard/internal/scoreboard"
	"github.com/park285/padel-scoreboard/internal/scoring"
	"github.com/park285/padel-scoreboard/pkg/padeldto"
)

type Server struct {
	svc  *matchsvc.Service
	msgs *msgcat.Catalog
	app  *fiber.App
}

type Options struct {
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

func New(svc *matchsvc.Service, msgs *msgcat.Catalog, opts Options) *Server {
	if msgs == nil {
		msgs = msgcat.MustDefault()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{svc: svc, msgs: msgs}
	s.app = fiber.New(fiber.Config{
		AppName:               "padel-scoreboard",
		DisableStartupMessage: true,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		BodyLimit:             64 * 1024,
	})
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	s.app.Use(requestLogger)
	s.routes()
	return s
}

// App returns the underlying fiber app (Listen, Shutdown, Test).
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(padeldto.StatusResponse{Status: "ok"})
	})

	m := s.app.Group("/match")
	m.Post("/start", s.startMatch)
	m.Post("/point", s.addPoint)
	m.Post("/undo", s.undoPoint)
	m.Post("/end", s.endMatch)
	m.Get("/:id", s.getMatch)
	m.Get("/:id/export", s.exportMatch)
	m.Get("/:id/verify", s.verifyMatch)
	m.Get("/:id/scoreboard.png", s.scoreboardPNG)
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	obslog.L().Debug("http_request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("took", time.Since(start)),
	)
	return err
}

func decode(c *fiber.Ctx, dst any) error {
	body := c.Body()
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, dst)
}

func (s *Server) startMatch(c *fiber.Ctx) error {
	var req padeldto.StartMatchRequest
	if err := decode(c, &req); err != nil {
		return s.badBody(c, err.Error())
	}
	m, err := s.svc.Start(c.UserContext(), req.Players)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(padeldto.StartMatchResponse{MatchID: m.ID})
}

func (s *Server) addPoint(c *fiber.Ctx) error {
	var req padeldto.PointRequest
	if err := decode(c, &req); err != nil {
		return s.badBody(c, err.Error())
	}
	if strings.TrimSpace(req.MatchID) == "" {
		return s.badBody(c, "match_id is required")
	}
	if req.Player == nil {
		return s.detail(c, fiber.StatusUnprocessableEntity, msgcat.ErrInvalidSide, nil)
	}
	if _, err := s.svc.RecordPoint(c.UserContext(), req.MatchID, scoring.Side(*req.Player)); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(padeldto.StatusResponse{Status: "ok"})
}

func (s *Server) undoPoint(c *fiber.Ctx) error {
	var req padeldto.MatchIDRequest
	if err := decode(c, &req); err != nil {
		return s.badBody(c, err.Error())
	}
	if strings.TrimSpace(req.MatchID) == "" {
		return s.badBody(c, "match_id is required")
	}
	if _, err := s.svc.Undo(c.UserContext(), req.MatchID); err != nil {
		// unknown match and empty history share one answer
		if errors.Is(err, matchstore.ErrNotFound) {
			return s.detail(c, fiber.StatusNotFound, msgcat.ErrNoHistory, nil)
		}
		return s.fail(c, err)
	}
	return c.JSON(padeldto.StatusResponse{Status: "undone"})
}

func (s *Server) endMatch(c *fiber.Ctx) error {
	var req padeldto.MatchIDRequest
	if err := decode(c, &req); err != nil {
		return s.badBody(c, err.Error())
	}
	if strings.TrimSpace(req.MatchID) == "" {
		return s.badBody(c, "match_id is required")
	}
	res, err := s.svc.End(c.UserContext(), req.MatchID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(padeldto.EndMatchResponse{Status: string(scoring.StatusCompleted), ExportedTo: res.Location})
}

func (s *Server) getMatch(c *fiber.Ctx) error {
	m, err := s.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(matchView(m))
}

func (s *Server) exportMatch(c *fiber.Ctx) error {
	snap, err := s.svc.Export(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(snap)
}

func (s *Server) verifyMatch(c *fiber.Ctx) error {
	rep, err := s.svc.Verify(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(rep)
}

func (s *Server) scoreboardPNG(c *fiber.Ctx) error {
	m, err := s.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	img, err := scoreboard.RenderMatch(c.UserContext(), m)
	if err != nil {
		return s.fail(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Type("png")
	return c.Send(img)
}

func matchView(m *scoring.Match) padeldto.MatchView {
	v := padeldto.MatchView{
		Players:   m.Players,
		Sets:      make([][2]int, 0, len(m.Sets)),
		GameScore: [2]int{m.GameScore.Side0, m.GameScore.Side1},
		History:   make([]padeldto.PointView, 0, len(m.History)),
		Status:    string(m.Status),
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
	}
	for _, st := range m.Sets {
		v.Sets = append(v.Sets, [2]int{st.Side0, st.Side1})
	}
	for _, ev := range m.History {
		v.History = append(v.History, padeldto.PointView{Point: int(ev.Point), Time: ev.Time})
	}
	return v
}
