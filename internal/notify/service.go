package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"

	"tillpoint/internal/logger"
	"tillpoint/internal/metrics"
)

const (
	queueKey       = "notifications"
	failedQueueKey = "notifications:failed"
)

type Job struct {
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type Service struct {
	redis    *redis.Client
	from     string
	fromName string
	smtpHost string
	smtpPort string
	smtpUser string
	smtpPass string
}

func New(fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass, redisAddr string) *Service {
	return &Service{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
		from:     fromEmail,
		fromName: fromName,
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		smtpUser: smtpUser,
		smtpPass: smtpPass,
	}
}

func (s *Service) Send(ctx context.Context, to, name, subject, body string) error {
	job := Job{
		To:      to,
		Name:    name,
		Subject: subject,
		Body:    body,
		Tries:   0,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Failed to marshal notification job: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		logger.Errorf("Failed to queue notification to %s: %v", to, err)
		return err
	}

	logger.Infof("Notification queued: %s to %s", subject, to)
	return nil
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("Notification service started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Notification service stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad notification data: %v", err)
		return
	}

	job.Tries++
	logger.Infof("Sending notification to %s (attempt %d)", job.To, job.Tries)
	if err := s.sendNow(job); err != nil {
		logger.Errorf("Failed to send notification to %s: %v", job.To, err)

		if job.Tries < 3 {
			time.Sleep(5 * time.Second)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), queueKey, data)
			logger.Infof("Retrying notification to %s (attempt %d)", job.To, job.Tries+1)
		} else {
			logger.Errorf("Notification to %s failed after 3 attempts", job.To)
			metrics.RecordNotification("email", "failed")
			s.saveFailed(job, err)
		}
		return
	}

	metrics.RecordNotification("email", "sent")
	logger.Infof("Notification sent successfully to %s", job.To)
}

func (s *Service) sendNow(job Job) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.from)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.smtpUser != "" && s.smtpPass != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	}

	addr := s.smtpHost + ":" + s.smtpPort
	return smtp.SendMail(addr, auth, s.from, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(job Job, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, data)
	logger.Errorf("Notification moved to failed queue: %s", job.To)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.NotifyQueueLength.Set(float64(length))
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}

func (s *Service) SendRenewalReceipt(ctx context.Context, email, name, storeID string, newExpiry time.Time) error {
	subject := "Subscription Renewed"
	body := fmt.Sprintf(`Hi %s,

Your subscription for store %s has been renewed.

Active until: %s

Thanks for staying with us!

- TillPoint Team`, name, storeID, newExpiry.Format("Jan 2, 2006"))

	return s.Send(ctx, email, name, subject, body)
}

// graceWarnTTL spaces repeat warnings while a store sits in its grace period.
const graceWarnTTL = 24 * time.Hour

// SendGraceWarningOnce queues a grace warning at most once per store per
// graceWarnTTL. Gate checks fire on every gated request, so the dedup lives
// here rather than at the call site.
func (s *Service) SendGraceWarningOnce(ctx context.Context, email, name, storeID string, daysRemaining int) error {
	key := "grace_warned:" + storeID
	won, err := s.redis.SetNX(ctx, key, 1, graceWarnTTL).Result()
	if err != nil {
		return err
	}
	if !won {
		return nil
	}
	return s.SendGraceWarning(ctx, email, name, storeID, daysRemaining)
}

func (s *Service) SendGraceWarning(ctx context.Context, email, name, storeID string, daysRemaining int) error {
	subject := "Subscription Expired - Grace Period Active"
	body := fmt.Sprintf(`Hi %s,

The subscription for store %s has expired. You have %d day(s) of grace
period left before the store is blocked.

Renew now to avoid any interruption.

- TillPoint Team`, name, storeID, daysRemaining)

	return s.Send(ctx, email, name, subject, body)
}

func (s *Service) SendBlockedNotice(ctx context.Context, email, name, storeID string) error {
	subject := "Store Access Blocked"
	body := fmt.Sprintf(`Hi %s,

The subscription and grace period for store %s have ended, so access has
been blocked. Renew your subscription to restore access.

- TillPoint Team`, name, storeID)

	return s.Send(ctx, email, name, subject, body)
}

func (s *Service) SendSyncFailureAlert(ctx context.Context, email, name, storeID, localID, reason string) error {
	subject := "Offline Sale Failed to Sync"
	body := fmt.Sprintf(`Hi %s,

An offline sale for store %s could not be synced.

Entry: %s
Reason: %s

The sale is kept in the queue for review.

- TillPoint Team`, name, storeID, localID, reason)

	return s.Send(ctx, email, name, subject, body)
}
