package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/observability"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

// Logger writes task logs.
type Logger struct {
	log     logrus.FieldLogger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewLogger creates a task log writer. metrics may be nil.
func NewLogger(log logrus.FieldLogger, metrics *observability.Metrics) *Logger {
	return &Logger{
		log:     log,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LogWithChanges appends one entry holding every non-nil change. When no
// change remains nothing is written and the returned entry is nil.
func (l *Logger) LogWithChanges(ctx context.Context, q storage.TaskLogStore, taskID int64, actor model.OptionalID, event model.TaskLogEventType, changes ...*model.Change) (*model.TaskLog, error) {
	kept := make([]model.Change, 0, len(changes))
	for _, c := range changes {
		if c != nil {
			kept = append(kept, *c)
		}
	}
	if len(kept) == 0 {
		l.metrics.AuditSuppressed(string(event))
		observability.FromContext(ctx, l.log).WithFields(logrus.Fields{
			"task_id": taskID,
			"event":   event,
		}).Debug("No field changed, task log skipped")
		return nil, nil
	}
	return l.append(ctx, q, taskID, actor, event, kept)
}

// LogSimple appends an entry with no changes.
func (l *Logger) LogSimple(ctx context.Context, q storage.TaskLogStore, taskID int64, actor model.OptionalID, event model.TaskLogEventType) (*model.TaskLog, error) {
	return l.append(ctx, q, taskID, actor, event, []model.Change{})
}

func (l *Logger) append(ctx context.Context, q storage.TaskLogStore, taskID int64, actor model.OptionalID, event model.TaskLogEventType, changes []model.Change) (*model.TaskLog, error) {
	entry := &model.TaskLog{
		TaskID:    taskID,
		EventType: event,
		ActorID:   actor,
		Changes:   changes,
		CreatedAt: l.now(),
	}
	if err := q.AppendTaskLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append %s log for task %d: %w", event, taskID, err)
	}
	l.metrics.AuditLog(string(event))
	return entry, nil
}
