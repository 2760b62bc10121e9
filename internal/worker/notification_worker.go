package worker

import (
	"context"

	"github.com/spec-kit/thelewala-agent/internal/service"
)

// StartNotificationWorker registers notice handlers and waits for pending
// webhook deliveries once ctx ends.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService) <-chan struct{} {
	done := make(chan struct{})
	if notificationService == nil {
		close(done)
		return done
	}
	notificationService.RegisterHandlers()

	go func() {
		defer close(done)
		<-ctx.Done()
		notificationService.Wait()
	}()
	return done
}
