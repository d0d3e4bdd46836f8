package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"telegram-diet-diary/internal/report"
)

// zone reads the optional tz query parameter. nil means "let the report
// use the user's own zone".
func zone(c *gin.Context) (*time.Location, error) {
	tz := c.Query("tz")
	if tz == "" {
		return nil, nil
	}
	return report.LoadZone(tz)
}

func required(c *gin.Context, names ...string) error {
	for _, n := range names {
		if c.Query(n) == "" {
			return report.ErrInvalidInput.New("%s is required", n)
		}
	}
	return nil
}

// GET /api/report/calendar?userId=&month=YYYY-MM
func (s *Server) getCalendar(c *gin.Context) {
	userID, loc, err := reportParams(c, "month")
	if err != nil {
		fail(c, err)
		return
	}
	cal, err := s.reports.Calendar(c.Request.Context(), userID, c.Query("month"), loc)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                  true,
		"month":               cal.Month,
		"dailyNorm":           cal.DailyNorm,
		"dates":               cal.Dates,
		"datesWithPercentage": cal.DatesWithPercentage,
	})
}

// GET /api/report/day?userId=&date=YYYY-MM-DD
func (s *Server) getDay(c *gin.Context) {
	userID, loc, err := reportParams(c, "date")
	if err != nil {
		fail(c, err)
		return
	}
	rep, err := s.reports.Day(c.Request.Context(), userID, c.Query("date"), loc)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "report": rep})
}

// GET /api/report/period?userId=&periodStart=&periodEnd=
func (s *Server) getPeriod(c *gin.Context) {
	userID, loc, err := reportParams(c, "periodStart", "periodEnd")
	if err != nil {
		fail(c, err)
		return
	}
	rep, err := s.reports.Period(c.Request.Context(), userID, c.Query("periodStart"), c.Query("periodEnd"), loc)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "report": rep})
}

func reportParams(c *gin.Context, names ...string) (int64, *time.Location, error) {
	userID, err := report.ParseUserID(c.Query("userId"))
	if err != nil {
		return 0, nil, err
	}
	if err := required(c, names...); err != nil {
		return 0, nil, err
	}
	loc, err := zone(c)
	if err != nil {
		return 0, nil, err
	}
	return userID, loc, nil
}
