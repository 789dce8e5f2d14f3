package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/CLDWare/attendance-backend/config"
	"github.com/CLDWare/attendance-backend/internal/attendance"
	models "github.com/CLDWare/attendance-backend/pkg/db"
	"github.com/CLDWare/attendance-backend/pkg/logger"
	"gorm.io/gorm"
)

// Janitor periodically closes expired attendance sessions and cleans the
// database. The expired-session sweep here only bounds how long an abandoned
// ACTIVE row can linger; correctness never depends on it, because reads
// re-validate against ExpiresAt themselves.
type Janitor struct {
	cfg              *config.Config
	database         *gorm.DB
	store            *attendance.Store
	announceNoAction bool
	cancel           context.CancelFunc
}

func NewJanitor(cfg *config.Config, db *gorm.DB, announceNoAction bool) *Janitor {
	return &Janitor{
		cfg:              cfg,
		database:         db,
		store:            attendance.NewStore(cfg, db),
		announceNoAction: announceNoAction,
	}
}

func (jan *Janitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	jan.cancel = cancel

	go func() {
		shortTicker := time.NewTicker(jan.cfg.Janitor.ShortCleanInterval)
		defer shortTicker.Stop()
		fullTicker := time.NewTicker(jan.cfg.Janitor.FullCleanInterval)
		defer fullTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-shortTicker.C:
				jan.RunShort()
			case <-fullTicker.C:
				jan.RunFull()
			}
		}
	}()
}

func (jan *Janitor) Stop() {
	if jan.cancel != nil {
		jan.cancel()
		jan.cancel = nil
	}
}

func (jan *Janitor) RunShort() {
	logger.Info("Janitor: Running short cleaning sequence.")
	jan.CloseExpiredSessions()
	jan.CleanUpExpiredAuthSession()
}

func (jan *Janitor) RunFull() {
	logger.Info("Janitor: Running full cleaning sequence.")
	jan.RunShort()

	jan.DeepCleanDatabase(nil)
}

// CloseExpiredSessions transitions every ACTIVE session past its expiry to
// CLOSED, across all lecturers.
func (jan *Janitor) CloseExpiredSessions() {
	ctx := context.Background()

	if err := jan.store.SweepExpired(ctx, 0); err != nil {
		logger.Err(fmt.Sprintf("Janitor: Error while closing expired sessions: %s", err.Error()))
		return
	}
	logger.Info("Janitor: swept expired attendance sessions")
}

// DeepCleanDatabase forces gorm to delete all "deleted" entries
func (jan *Janitor) DeepCleanDatabase(deepcleanModels *[]any) {
	if deepcleanModels == nil {
		deepcleanModels = &[]any{
			models.Department{},
			models.User{},
			models.Course{},
			models.AuthSession{},
		}
	}
	for _, deepcleanModel := range *deepcleanModels {
		result := jan.database.Unscoped().Where("deleted_at IS NOT NULL").Delete(deepcleanModel)
		if result.Error != nil {
			logger.Err(fmt.Sprintf("Janitor: Error while deepcleaning model %T: %s", deepcleanModel, result.Error.Error()))
		} else {
			if jan.announceNoAction || result.RowsAffected != 0 {
				logger.Info(fmt.Sprintf("Janitor: Deleted %d rows from model %T", result.RowsAffected, deepcleanModel))
			}
		}
	}
}

// CleanUpExpiredAuthSession cleans up auth sessions that have expired
func (jan *Janitor) CleanUpExpiredAuthSession() {
	ctx := context.Background()

	sessionsDeleted, err := gorm.G[models.AuthSession](jan.database).Where("expires_at < ?", time.Now()).Delete(ctx)
	if err != nil {
		return
	}
	logger.Info(fmt.Sprintf("Janitor: cleaned %d expired auth sessions", sessionsDeleted))
}
