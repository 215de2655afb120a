// workers/reaper.go
package workers

import (
	"log"
	"time"

	"github.com/AleksanderGPL/pao/models"
	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

const (
	staleLobbyAge = 24 * time.Hour
	staleTokenAge = 30 * 24 * time.Hour
	reapInterval  = 10 * time.Minute
)

// StartReaper runs periodic maintenance: lobbies that never started within
// a day are closed (status is forward-only, so inactive games go straight
// to finished), and session tokens past their shelf life are deleted.
func StartReaper(db *gorm.DB) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("[Reaper] Failed to create scheduler: %v", err)
		return
	}
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(reapInterval),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-staleLobbyAge)

			res := db.Model(&models.Game{}).
				Where("status = ? AND created_at < ?", models.GameStatusInactive, cutoff).
				Update("status", models.GameStatusFinished)
			if res.Error != nil {
				log.Printf("[Reaper] Failed to close stale lobbies: %v", res.Error)
			} else if res.RowsAffected > 0 {
				log.Printf("[Reaper] Closed %d stale lobbies", res.RowsAffected)
			}

			tokenCutoff := time.Now().Add(-staleTokenAge)
			res = db.Where("created_at < ?", tokenCutoff).Delete(&models.UserSession{})
			if res.Error != nil {
				log.Printf("[Reaper] Failed to prune sessions: %v", res.Error)
			} else if res.RowsAffected > 0 {
				log.Printf("[Reaper] Pruned %d expired sessions", res.RowsAffected)
			}
		}),
	)
}
