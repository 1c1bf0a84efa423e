package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/rumsystem/nft-bbs-sub001/db"
)

// keepaliveInterval paces the SSE ping events that keep idle connections
// alive through proxies. Variable so tests can tighten it.
var keepaliveInterval = 5 * time.Second

type ServerConfig struct {

	// The reader to use for serving projection state
	Reader *db.Reader

	// The store handles read-state mutations (marking notifications read)
	Store *db.Store

	// Broadcast channel to pass committed events to SSE clients
	Broadcaster *Broadcaster

	// AllowOrigins configures CORS for the web client
	AllowOrigins string
}

// Returns a fiber.App instance serving the read API and the SSE push channel
func Server(config *ServerConfig) *fiber.App {

	bc := config.Broadcaster

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		// stop timer
		stop := time.Now()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	if config.AllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     config.AllowOrigins,
			AllowHeaders:     "Cache-Control",
			AllowCredentials: true,
		}))
	}

	app.Get("/api/groups", func(c *fiber.Ctx) error {
		groups, err := config.Reader.ListGroups()
		if err != nil {
			log.Error("Error listing groups", err)
			return c.Status(500).SendString("Error listing groups")
		}
		return c.JSON(groups)
	})

	app.Get("/api/posts", func(c *fiber.Ctx) error {
		groupID := c.Query("group", "")
		if groupID == "" {
			return c.Status(400).SendString("Missing group")
		}
		order := c.Query("order", "time")
		if order != "time" && order != "hot" {
			return c.Status(400).SendString("Invalid order")
		}
		limit, offset := pagination(c, 20, 100)

		posts, err := config.Reader.ListPosts(groupID, order, limit, offset)
		if err != nil {
			log.Error("Error listing posts", err)
			return c.Status(500).SendString("Error listing posts")
		}
		return c.JSON(posts)
	})

	app.Get("/api/posts/:id", func(c *fiber.Ctx) error {
		groupID := c.Query("group", "")
		if groupID == "" {
			return c.Status(400).SendString("Missing group")
		}
		post, err := config.Reader.GetPost(groupID, c.Params("id"))
		if err != nil {
			log.Error("Error getting post", err)
			return c.Status(500).SendString("Error getting post")
		}
		if post == nil {
			return c.Status(404).SendString("Post not found")
		}
		return c.JSON(post)
	})

	app.Get("/api/comments", func(c *fiber.Ctx) error {
		groupID := c.Query("group", "")
		postID := c.Query("post", "")
		if groupID == "" || postID == "" {
			return c.Status(400).SendString("Missing group or post")
		}
		comments, err := config.Reader.ListComments(groupID, postID)
		if err != nil {
			log.Error("Error listing comments", err)
			return c.Status(500).SendString("Error listing comments")
		}
		return c.JSON(comments)
	})

	app.Get("/api/profiles/:address", func(c *fiber.Ctx) error {
		groupID := c.Query("group", "")
		if groupID == "" {
			return c.Status(400).SendString("Missing group")
		}
		profile, err := config.Reader.GetLatestProfile(groupID, c.Params("address"))
		if err != nil {
			log.Error("Error getting profile", err)
			return c.Status(500).SendString("Error getting profile")
		}
		if profile == nil {
			return c.Status(404).SendString("Profile not found")
		}
		return c.JSON(profile)
	})

	app.Get("/api/notifications", func(c *fiber.Ctx) error {
		groupID := c.Query("group", "")
		address := c.Query("address", "")
		if groupID == "" || address == "" {
			return c.Status(400).SendString("Missing group or address")
		}
		limit, offset := pagination(c, 20, 100)

		notifications, err := config.Reader.ListNotifications(groupID, address, limit, offset)
		if err != nil {
			log.Error("Error listing notifications", err)
			return c.Status(500).SendString("Error listing notifications")
		}
		return c.JSON(notifications)
	})

	app.Post("/api/notifications/read", func(c *fiber.Ctx) error {
		var body struct {
			Group   string `json:"group"`
			Address string `json:"address"`
		}
		if err := c.BodyParser(&body); err != nil || body.Group == "" || body.Address == "" {
			return c.Status(400).SendString("Missing group or address")
		}
		if err := config.Store.MarkNotificationsRead(body.Group, body.Address); err != nil {
			log.Error("Error marking notifications read", err)
			return c.Status(500).SendString("Error marking notifications read")
		}
		return c.SendStatus(204)
	})

	app.Get("/api/images/:id", func(c *fiber.Ctx) error {
		groupID := c.Query("group", "")
		if groupID == "" {
			return c.Status(400).SendString("Missing group")
		}
		image, err := config.Reader.GetImage(groupID, c.Params("id"))
		if err != nil {
			log.Error("Error getting image", err)
			return c.Status(500).SendString("Error getting image")
		}
		if image == nil {
			return c.Status(404).SendString("Image not found")
		}
		if image.MimeType != "" {
			c.Set("Content-Type", image.MimeType)
		}
		// Image blobs are immutable once created
		c.Set("Cache-Control", "public, max-age=31536000, immutable")
		return c.Send(image.Content)
	})

	app.Get("/api/appends", func(c *fiber.Ctx) error {
		groupID := c.Query("group", "")
		postID := c.Query("post", "")
		if groupID == "" || postID == "" {
			return c.Status(400).SendString("Missing group or post")
		}
		appends, err := config.Reader.ListPostAppends(groupID, postID)
		if err != nil {
			log.Error("Error listing post appends", err)
			return c.Status(500).SendString("Error listing post appends")
		}
		return c.JSON(appends)
	})

	app.Delete("/api/sse", func(c *fiber.Ctx) error {
		key := c.Query("key", "")
		bc.RemoveClient(key)
		return c.Status(200).SendString("OK")
	})

	app.Get("/api/sse", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Address-based subscription for notification delivery
		address := c.Query("address", "")

		// Unique client key
		key := uuid.New().String()
		eventChannel := make(chan Message, 10) // Buffered channel

		// Register the client
		bc.AddClient(key, address, eventChannel)

		// Cleanup function
		cleanup := func() {
			log.Infof("Cleaning up SSE stream for client: %s", key)
			bc.RemoveClient(key)
		}

		// Use StreamWriter to manage SSE streaming
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cleanup()

			// The handler has already returned when this runs, so the
			// keepalive ticker must live inside the stream writer
			keepalive := time.NewTicker(keepaliveInterval)
			defer keepalive.Stop()

			// Send initial event with client key
			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			// Start streaming loop
			for {
				select {
				case <-keepalive.C:
					// Send keep-alive pings
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case msg, ok := <-eventChannel:
					if !ok {
						log.Warnf("Event channel closed for client %s", key)
						return
					}
					payload, err := json.Marshal(msg.Data)
					if err != nil {
						log.Errorf("Error marshalling event for client %s: %v", key, err)
						continue
					}
					if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, payload); err != nil {
						log.Warnf("Failed to send %s event to client %s: %v", msg.Event, key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush %s event for client %s: %v", msg.Event, key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	return app
}

func pagination(c *fiber.Ctx, def int, max int) (limit int, offset int) {
	limit64, err := strconv.ParseInt(c.Query("limit", strconv.Itoa(def)), 0, 32)
	if err != nil || limit64 < 1 || limit64 > int64(max) {
		limit64 = int64(def)
	}
	offset64, err := strconv.ParseInt(c.Query("offset", "0"), 0, 32)
	if err != nil || offset64 < 0 {
		offset64 = 0
	}
	return int(limit64), int(offset64)
}
