package services

import (
	"fmt"
	"gopkg.in/gomail.v2"
	"strings"
	"sync"
	"time"

	"goodturn-api/config"
)

// AlertService emails an operator when the aggregation pipeline degrades in
// a way that needs a human: a batch failed to persist, or every source in a
// fan-out came back empty-handed. Mails per alert key are throttled so a
// flapping source does not flood the inbox.
type AlertService struct {
	config *config.Config
	dialer *gomail.Dialer

	mutex    sync.Mutex
	lastSent map[string]time.Time
}

func NewAlertService(cfg *config.Config) *AlertService {
	return &AlertService{
		config:   cfg,
		dialer:   gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		lastSent: make(map[string]time.Time),
	}
}

// NotifyPersistFailure reports a rolled-back batch write.
func (as *AlertService) NotifyPersistFailure(city, state string, err error) {
	subject := fmt.Sprintf("Event cache persist failure: %s, %s", city, state)
	body := fmt.Sprintf("A scraped event batch for %s, %s could not be committed and was rolled back.\n\nError: %v\n", city, state, err)
	as.send("persist:"+city+":"+state, subject, body)
}

// NotifyAllSourcesFailed reports a fan-out in which no source produced data.
func (as *AlertService) NotifyAllSourcesFailed(city, state string, report BatchReport) {
	var lines []string
	for _, res := range report.Failures() {
		lines = append(lines, fmt.Sprintf("- %s: %v", res.Source, res.Err))
	}
	subject := fmt.Sprintf("All event sources failed: %s, %s", city, state)
	body := fmt.Sprintf("Every source in the fan-out for %s, %s failed:\n\n%s\n", city, state, strings.Join(lines, "\n"))
	as.send("sources:"+city+":"+state, subject, body)
}

func (as *AlertService) send(key, subject, body string) {
	if as.config.AlertEmail == "" {
		return
	}

	as.mutex.Lock()
	if last, ok := as.lastSent[key]; ok && time.Since(last) < as.config.AlertCooldown {
		as.mutex.Unlock()
		return
	}
	as.lastSent[key] = time.Now()
	as.mutex.Unlock()

	m := gomail.NewMessage()
	m.SetHeader("From", as.config.FromEmail)
	m.SetHeader("To", as.config.AlertEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	// Fire and forget; alerting must never block a request.
	go func() {
		if err := as.dialer.DialAndSend(m); err != nil {
			fmt.Printf("Warning: could not send alert email: %v\n", err)
		}
	}()
}
