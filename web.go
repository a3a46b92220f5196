package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/rs/zerolog/log"

	"github.com/vencenty/photo-uploader/crop"
)

//go:embed static
var staticFS embed.FS
var isDebug = os.Getenv("DEBUG") == "1"

type Config struct {
	RootDir          string
	OutputDir        string
	Addr             string
	Sizes            *SizeCatalog
	Sessions         *SessionStore
	OnBeforeShutdown func()
	OnReady          func(addr string)
	OnSave           func(ops Operations)
}

type WebApp struct {
	config       Config
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

func NewWebApp(config Config) *WebApp {
	if config.Sizes == nil {
		config.Sizes = DefaultSizes()
	}
	return &WebApp{
		config:     config,
		shutdownCh: make(chan struct{}),
	}
}

func (a *WebApp) Shutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdownCh)
	})
}

// statusFor maps engine failures to HTTP statuses.
func statusFor(err error) int {
	switch crop.ReasonOf(err) {
	case crop.ReasonInvalidCropGeometry, crop.ReasonInvalidQuality, crop.ReasonInvalidEditState:
		return http.StatusUnprocessableEntity
	case crop.ReasonSourceLoad:
		return http.StatusBadGateway
	case crop.ReasonExportInFlight, crop.ReasonStaleExport:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (a *WebApp) newApp(ctx context.Context) *fiber.App {
	webapp := fiber.New(fiber.Config{
		Immutable:             true,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Ctx(c.UserContext()).Error().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("Request failed")
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				if fiberErr.Code == http.StatusNotFound && c.Path() == "/favicon.ico" {
					return nil
				}
				return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
			}
			if reason := crop.ReasonOf(err); reason != "" {
				return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error(), "reason": reason})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
		},
	})

	logger := log.Ctx(ctx)
	webapp.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(logger.WithContext(c.UserContext()))
		return c.Next()
	})

	webapp.Hooks().OnListen(func(listen fiber.ListenData) error {
		if fn := a.config.OnReady; fn != nil {
			fn(fmt.Sprintf("http://%s:%s", listen.Host, listen.Port))
		}
		return nil
	})

	filesRoot := http.Dir(a.config.RootDir)
	webapp.Get("/api/view", func(c *fiber.Ctx) error {
		filePath := c.Query("file")
		return filesystem.SendFile(c, filesRoot, filePath)
	})

	webapp.Get("/api/ls", func(c *fiber.Ctx) error {
		dir, err := walkImages(a.config.RootDir, a.config.OutputDir)
		if err != nil {
			return fmt.Errorf("failed to walk dir: %w", err)
		}

		for i := range dir.Files {
			dir.Files[i].URL = "/api/view?file=" + url.QueryEscape(dir.Files[i].Name)
		}

		var response struct {
			Name  string     `json:"name"`
			Files []FileInfo `json:"files"`
		}
		response.Name = dir.Name
		response.Files = dir.Files

		return c.JSON(response)
	})

	webapp.Get("/api/sizes", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sizes":     a.config.Sizes.Sizes,
			"qualities": crop.QualityPresets,
			"presets":   crop.PresetNames(),
		})
	})

	a.sessionRoutes(webapp.Group("/api/sessions"))

	webapp.Post("/api/save", func(c *fiber.Ctx) error {
		var request struct {
			Operations []Operation `json:"operations"`
		}

		if err := c.BodyParser(&request); err != nil {
			return err
		}

		if fn := a.config.OnSave; fn != nil {
			fn(request.Operations)
		}

		return c.SendStatus(http.StatusNoContent)
	})
	webapp.Post("/api/shutdown", func(c *fiber.Ctx) error {
		a.Shutdown()
		return nil
	})

	if isDebug {
		log.Debug().Msg("Debug mode enabled, serving static files from './static' directory")
		webapp.Static("/", "static")
	} else {
		log.Debug().Msg("Serving static files from embedded filesystem")
		webapp.Use("/", filesystem.New(filesystem.Config{
			Root:       http.FS(staticFS),
			PathPrefix: "/static",
		}))
	}

	return webapp
}

func (a *WebApp) sessionRoutes(r fiber.Router) {
	sessions := a.config.Sessions

	lookup := func(c *fiber.Ctx) (*crop.Session, error) {
		sess, ok := sessions.Get(c.Params("id"))
		if !ok {
			return nil, fiber.NewError(http.StatusNotFound, "session not found")
		}
		return sess, nil
	}
	// withSession runs fn on the addressed session and replies with its snapshot.
	withSession := func(fn func(c *fiber.Ctx, sess *crop.Session) error) fiber.Handler {
		return func(c *fiber.Ctx) error {
			sess, err := lookup(c)
			if err != nil {
				return err
			}
			if err := fn(c, sess); err != nil {
				return err
			}
			return c.JSON(sess.Snapshot())
		}
	}

	r.Post("/", func(c *fiber.Ctx) error {
		var request struct {
			File   string  `json:"file"`
			Size   string  `json:"size"`
			Aspect float64 `json:"aspect"`
			Mobile bool    `json:"mobile"`
		}
		if err := c.BodyParser(&request); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if request.File == "" {
			return fiber.NewError(http.StatusBadRequest, "file is required")
		}
		aspect := request.Aspect
		if aspect <= 0 {
			size, ok := a.config.Sizes.Lookup(request.Size)
			if !ok {
				return fiber.NewError(http.StatusBadRequest, fmt.Sprintf("unknown print size %q, have %s",
					request.Size, strings.Join(a.config.Sizes.Names(), ", ")))
			}
			aspect = size.AspectRatio
		}
		sess, err := sessions.Open(c.UserContext(), request.File, aspect, request.Mobile)
		if err != nil {
			return err
		}
		return c.Status(http.StatusCreated).JSON(sess.Snapshot())
	})

	r.Get("/:id", withSession(func(*fiber.Ctx, *crop.Session) error { return nil }))

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if !sessions.Close(c.Params("id")) {
			return fiber.NewError(http.StatusNotFound, "session not found")
		}
		return c.SendStatus(http.StatusNoContent)
	})

	r.Post("/:id/edit", withSession(func(c *fiber.Ctx, sess *crop.Session) error {
		var request struct {
			Offset      *crop.Offset   `json:"offset"`
			Zoom        *float64       `json:"zoom"`
			Adjustments map[string]int `json:"adjustments"`
		}
		if err := c.BodyParser(&request); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		_, err := sess.Edit(crop.EditChange{
			Offset:      request.Offset,
			Zoom:        request.Zoom,
			Adjustments: request.Adjustments,
		})
		return err
	}))

	r.Post("/:id/rotate", withSession(func(c *fiber.Ctx, sess *crop.Session) error {
		var request struct {
			Direction string   `json:"direction"`
			Degrees   *float64 `json:"degrees"`
		}
		if err := c.BodyParser(&request); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		switch {
		case request.Degrees != nil:
			_, err := sess.SetRotation(*request.Degrees)
			return err
		case request.Direction == "left":
			sess.Rotate(-1)
		case request.Direction == "right":
			sess.Rotate(1)
		default:
			return fiber.NewError(http.StatusBadRequest, "direction must be left or right")
		}
		return nil
	}))

	r.Post("/:id/preset", withSession(func(c *fiber.Ctx, sess *crop.Session) error {
		var request struct {
			Name string `json:"name"`
		}
		if err := c.BodyParser(&request); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		_, err := sess.ApplyPreset(request.Name)
		return err
	}))

	r.Post("/:id/reset", withSession(func(c *fiber.Ctx, sess *crop.Session) error {
		var request struct {
			Adjustment string `json:"adjustment"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&request); err != nil {
				return fiber.NewError(http.StatusBadRequest, err.Error())
			}
		}
		if request.Adjustment == "" {
			sess.ResetAdjustments()
			return nil
		}
		_, err := sess.ResetAdjustment(request.Adjustment)
		return err
	}))

	r.Post("/:id/undo", withSession(func(_ *fiber.Ctx, sess *crop.Session) error {
		sess.Undo()
		return nil
	}))
	r.Post("/:id/redo", withSession(func(_ *fiber.Ctx, sess *crop.Session) error {
		sess.Redo()
		return nil
	}))
	r.Post("/:id/toggle-aspect", withSession(func(_ *fiber.Ctx, sess *crop.Session) error {
		sess.ToggleAspect()
		return nil
	}))

	r.Post("/:id/export", func(c *fiber.Ctx) error {
		sess, err := lookup(c)
		if err != nil {
			return err
		}
		var request struct {
			Quality float64 `json:"quality"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&request); err != nil {
				return fiber.NewError(http.StatusBadRequest, err.Error())
			}
		}
		if request.Quality == 0 {
			request.Quality = crop.DefaultQuality
		}

		started := time.Now()
		blob, err := sess.Export(c.UserContext(), request.Quality)
		if err != nil {
			return err
		}
		log.Ctx(c.UserContext()).Info().
			Str("session", sess.ID).
			Str("name", blob.Name).
			Int("width", blob.Width).
			Int("height", blob.Height).
			Int("bytes", blob.Size()).
			Dur("took", time.Since(started)).
			Msg("exported")

		c.Set(fiber.HeaderContentType, blob.MIMEType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", blob.Name))
		c.Set("X-Crop-Width", strconv.Itoa(blob.Width))
		c.Set("X-Crop-Height", strconv.Itoa(blob.Height))
		return c.Send(blob.Data)
	})
}

func (a *WebApp) Run(ctx context.Context) error {
	webapp := a.newApp(ctx)

	go func() {
		select {
		case <-ctx.Done():
		case <-a.shutdownCh:
		}
		if fn := a.config.OnBeforeShutdown; fn != nil {
			fn()
		}
		if a.config.Sessions != nil {
			a.config.Sessions.CloseAll()
		}
		if err := webapp.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to shutdown web application")
		}
	}()

	// An empty address lets the OS assign a random available port
	addr := a.config.Addr
	if addr == "" {
		addr = fmt.Sprintf("localhost:%d", 0)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	// Use the listener that was already created
	if err := webapp.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
