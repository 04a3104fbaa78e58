package httpapi

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-lookup/internal/export"
	"github.com/i474232898/weather-lookup/internal/history"
	"github.com/i474232898/weather-lookup/internal/pages"
)

type editForm struct {
	Location  string `form:"location"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

func backToHistory(c *fiber.Ctx) error {
	return c.Redirect("/history", fiber.StatusSeeOther)
}

func recordID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid record id")
	}
	return id, nil
}

// startLoad runs a table fetch in the background; the page refreshes
// itself until it settles.
func startLoad(fn func(context.Context) error, what string) {
	go func() {
		if err := fn(context.Background()); err != nil && !errors.Is(err, history.ErrBusy) {
			log.Printf("ERROR: history %s: %v", what, err)
		}
	}()
}

func (s *Server) historyPage(c *fiber.Ctx) error {
	sess := s.deps.Sessions.Get(c)
	table := sess.History.Table

	snap := table.Snapshot()
	if snap.Status == history.StatusIdle {
		startLoad(table.Load, "load")
		snap = table.Snapshot()
		if snap.Status == history.StatusIdle {
			snap.Status = history.StatusLoading
		}
	}

	return s.render(c, "history", historyPage{
		chrome:  chrome{Nav: "history", Refresh: snap.Status.InProgress()},
		Form:    sess.History.Form(),
		Table:   snap,
		Export:  sess.History.Export.State(),
		Formats: export.Formats,
	})
}

func (s *Server) historyStatus(c *fiber.Ctx) error {
	snap := s.deps.Sessions.Get(c).History.Table.Snapshot()
	return c.JSON(fiber.Map{
		"status":   snap.Status,
		"attempt":  snap.Attempt,
		"error":    snap.Error,
		"count":    len(snap.Rows),
		"has_more": snap.HasMore,
	})
}

func (s *Server) historyCreate(c *fiber.Ctx) error {
	sess := s.deps.Sessions.Get(c)

	var form pages.CreateForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form")
	}
	if _, err := sess.History.Create(c.UserContext(), form); err != nil {
		log.Printf("DEBUG: create query: %v", err)
	}
	return backToHistory(c)
}

func (s *Server) historyMore(c *fiber.Ctx) error {
	startLoad(s.deps.Sessions.Get(c).History.Table.LoadMore, "load more")
	return backToHistory(c)
}

func (s *Server) historyReload(c *fiber.Ctx) error {
	startLoad(s.deps.Sessions.Get(c).History.Table.Reload, "reload")
	return backToHistory(c)
}

func (s *Server) historyEdit(c *fiber.Ctx) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	_ = s.deps.Sessions.Get(c).History.Table.StartEdit(id)
	return backToHistory(c)
}

func (s *Server) historySave(c *fiber.Ctx) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	table := s.deps.Sessions.Get(c).History.Table

	var form editForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form")
	}
	if snap := table.Snapshot(); snap.Edit == nil || snap.Edit.ID != id {
		return backToHistory(c)
	}
	if err := table.SetForm(history.EditForm(form)); err != nil {
		return backToHistory(c)
	}
	if err := table.SaveEdit(c.UserContext()); err != nil {
		log.Printf("DEBUG: save query %d: %v", id, err)
	}
	return backToHistory(c)
}

func (s *Server) historyCancel(c *fiber.Ctx) error {
	s.deps.Sessions.Get(c).History.Table.CancelEdit()
	return backToHistory(c)
}

func (s *Server) historyToggle(c *fiber.Ctx) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	_ = s.deps.Sessions.Get(c).History.Table.ToggleExpand(id)
	return backToHistory(c)
}

func (s *Server) historyDelete(c *fiber.Ctx) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	_ = s.deps.Sessions.Get(c).History.Table.RequestDelete(id)
	return backToHistory(c)
}

func (s *Server) historyDeleteConfirm(c *fiber.Ctx) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	table := s.deps.Sessions.Get(c).History.Table
	if table.Snapshot().Pending != id {
		return backToHistory(c)
	}
	if err := table.ConfirmDelete(c.UserContext()); err != nil {
		log.Printf("DEBUG: delete query %d: %v", id, err)
	}
	return backToHistory(c)
}

func (s *Server) historyDeleteCancel(c *fiber.Ctx) error {
	s.deps.Sessions.Get(c).History.Table.CancelDelete()
	return backToHistory(c)
}

func (s *Server) exportDownload(c *fiber.Ctx) error {
	f, err := export.ParseFormat(c.Params("format"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	sess := s.deps.Sessions.Get(c)
	d, err := sess.History.Export.Run(c.UserContext(), f)
	if err != nil {
		// The control keeps the message for the history page.
		return backToHistory(c)
	}

	c.Attachment(d.Filename)
	c.Set(fiber.HeaderContentType, d.ContentType)
	return c.Send(d.Data)
}
