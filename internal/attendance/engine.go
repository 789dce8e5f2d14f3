package attendance

import (
	"context"
	"errors"
	"time"

	models "github.com/CLDWare/attendance-backend/pkg/db"
	"github.com/CLDWare/attendance-backend/pkg/logger"
	"gorm.io/gorm"
)

// MarkEvent describes one successful redemption, published for live feeds.
type MarkEvent struct {
	SessionID uint      `json:"session_id"`
	StudentID uint      `json:"student_id"`
	MarkCount uint      `json:"mark_count"`
	MarkedAt  time.Time `json:"marked_at"`
}

// MarkPublisher receives a MarkEvent after each successful redemption.
// Publish must not block; the engine calls it on the request goroutine.
type MarkPublisher interface {
	Publish(event MarkEvent)
}

// Engine validates tokens and records marks. It is stateless; the unique
// constraint on (session_id, student_id) is the sole serialization point, so
// any number of concurrent Redeem calls for the same pair end with exactly
// one mark.
type Engine struct {
	store     *Store
	publisher MarkPublisher
}

// NewEngine creates a new Engine. publisher may be nil.
func NewEngine(store *Store, publisher MarkPublisher) *Engine {
	return &Engine{
		store:     store,
		publisher: publisher,
	}
}

// Redeem marks the student present for the session the token resolves to.
//
// Expiry is checked once, at token resolution. A request that resolves just
// before ExpiresAt and inserts just after is accepted; the session boundary
// is a passive timeout, not a cancellation signal to in-flight requests.
//
// The insert is the point of truth for duplicates: it is attempted without a
// prior existence check, and a unique-constraint violation is the duplicate
// signal. That makes Redeem safe to retry after a transient persistence
// failure; a retried insert that already committed reports ErrAlreadyMarked.
func (e *Engine) Redeem(ctx context.Context, tok string, studentID uint) (*models.AttendanceRecord, error) {
	session, err := e.store.FindRedeemableSession(ctx, tok)
	if err != nil {
		return nil, err
	}

	record := models.AttendanceRecord{
		SessionID: session.ID,
		StudentID: studentID,
		CourseID:  session.CourseID,
		MarkedAt:  time.Now(),
	}
	err = gorm.G[models.AttendanceRecord](e.store.db).Create(ctx, &record)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrAlreadyMarked
	} else if err != nil {
		return nil, err
	}

	// Blind atomic increment. Count-only, so it needs no read step and no
	// ordering against other redemptions beyond following this insert.
	err = e.store.db.WithContext(ctx).
		Model(&models.AttendanceSession{}).
		Where("id = ?", session.ID).
		UpdateColumn("mark_count", gorm.Expr("mark_count + ?", 1)).Error
	if err != nil {
		// The mark itself is recorded; the counter is convenience data and
		// report queries count rows, so the redemption still succeeded.
		logger.Err("Failed to increment mark count for session", session.ID, ":", err)
	}

	if e.publisher != nil {
		e.publisher.Publish(MarkEvent{
			SessionID: session.ID,
			StudentID: studentID,
			MarkCount: session.MarkCount + 1,
			MarkedAt:  record.MarkedAt,
		})
	}

	return &record, nil
}
