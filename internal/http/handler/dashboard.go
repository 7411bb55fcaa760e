package handler

import (
	"strconv"
	"strings"
	"time"

	"backend-loket/internal/models"
	"backend-loket/internal/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type DashboardHandler struct {
	svc *queue.Service
	log *log.Entry
}

func NewDashboardHandler(svc *queue.Service, logger *log.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, log: logger.WithField("component", "http")}
}

// Summary - ringkasan hari ini (atau ?date=YYYY-MM-DD)
func (h *DashboardHandler) Summary(c *fiber.Ctx) error {
	date := c.Query("date", h.svc.Today())
	if _, err := time.Parse(queue.DateLayout, date); err != nil {
		return badRequest(c, "Format tanggal harus YYYY-MM-DD")
	}

	summary, err := h.svc.Summary(c.UserContext(), date)
	if err != nil {
		return queueError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    summary,
	})
}

// Events - riwayat queue_events untuk analitik
// ?from=&to= (RFC3339 atau YYYY-MM-DD), ?type=called,completed, ?entry_id=, ?counter_id=, ?priority=
func (h *DashboardHandler) Events(c *fiber.Ctx) error {
	f, err := h.parseEventFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	events, err := h.svc.ListEvents(c.UserContext(), f)
	if err != nil {
		return queueError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    events,
		"total":   len(events),
	})
}

func (h *DashboardHandler) parseEventFilter(c *fiber.Ctx) (queue.EventFilter, error) {
	var (
		f   queue.EventFilter
		err error
	)
	loc := h.svc.Location()

	if v := c.Query("from"); v != "" {
		if f.From, err = parseTimeParam(v, loc); err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, "from tidak valid")
		}
	}
	if v := c.Query("to"); v != "" {
		if f.To, err = parseTimeParam(v, loc); err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, "to tidak valid")
		}
		// tanggal saja berarti sampai akhir hari itu
		if len(v) == len(queue.DateLayout) {
			f.To = f.To.AddDate(0, 0, 1)
		}
	}
	if v := c.Query("type"); v != "" {
		for _, part := range strings.Split(v, ",") {
			t, err := models.ParseEventType(strings.TrimSpace(part))
			if err != nil {
				return f, fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			f.Types = append(f.Types, t)
		}
	}
	if v := c.Query("entry_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, "entry_id tidak valid")
		}
		f.EntryID = &id
	}
	if v := c.Query("counter_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, "counter_id tidak valid")
		}
		f.CounterID = &id
	}
	if v := c.Query("priority"); v != "" {
		p, err := strconv.ParseBool(v)
		if err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, "priority tidak valid")
		}
		f.Priority = &p
	}
	return f, nil
}

func parseTimeParam(v string, loc *time.Location) (time.Time, error) {
	if len(v) == len(queue.DateLayout) {
		return time.ParseInLocation(queue.DateLayout, v, loc)
	}
	return time.Parse(time.RFC3339, v)
}
