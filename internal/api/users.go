package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"telegram-diet-diary/internal/models"
	"telegram-diet-diary/internal/report"
)

var (
	genders    = map[string]bool{"male": true, "female": true}
	activities = map[string]bool{"sedentary": true, "light": true, "moderate": true, "active": true, "very_active": true}
	goals      = map[string]bool{"lose": true, "gain": true, "maintain": true}
)

func validProfile(p models.Profile) bool {
	if !genders[p.Gender] || !activities[p.Activity] || !goals[p.Goal] {
		return false
	}
	for _, v := range []float64{float64(p.Age), p.Height, p.Weight, p.Calories, p.Protein, p.Fat, p.Carbs} {
		if !(v > 0) {
			return false
		}
	}
	return true
}

// POST /api/save?id= stores the questionnaire over an existing user row.
// Rows are only ever created by the bot on /start.
func (s *Server) saveProfile(c *gin.Context) {
	id, err := report.ParseUserID(c.Query("id"))
	if err != nil {
		fail(c, err)
		return
	}
	var p models.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, report.ErrInvalidInput.New("invalid body: %v", err))
		return
	}
	if !validProfile(p) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "error": "invalid questionnaire values"})
		return
	}

	u, err := s.store.UpdateProfile(c.Request.Context(), id, p)
	if err != nil {
		fail(c, report.ErrStorageUnavailable.Wrap(err))
		return
	}
	if u == nil {
		fail(c, report.ErrNotFound.New("user %d not found, run /start in the bot", id))
		return
	}
	log.Info().Int64("user_id", u.ID).Float64("calories", u.Calories).Msg("questionnaire saved")

	if s.notifier != nil {
		s.notifier.ProfileSaved(c.Request.Context(), u)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "id": u.ID})
}
