package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mixelka/massmailer/internal/dispatch"
	"github.com/mixelka/massmailer/pkg/models"
)

const (
	maxUploadSize  = 10 << 20 // 10 MB recipient file
	sendTimeLayout = "2006-01-02 15:04:05"
)

// handleSendMassMail accepts a mass-send job: provider, sender, subject,
// body, an uploaded recipient list and an optional schedule time. Immediate
// jobs dispatch inline and return 200; scheduled jobs return 202.
func (s *Server) handleSendMassMail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	service := strings.ToLower(r.FormValue("email_service"))
	if service != models.ProviderGmail && service != models.ProviderOutlook {
		s.respondError(w, http.StatusBadRequest, "invalid email service selected")
		return
	}

	senderEmail := r.FormValue("sender_email")
	subject := r.FormValue("subject")
	body := r.FormValue("body")
	if senderEmail == "" || subject == "" || body == "" {
		s.respondError(w, http.StatusBadRequest, "sender_email, subject and body are required")
		return
	}

	// Parse send_time before touching anything else so a malformed date
	// creates no partial state
	var scheduledAt *time.Time
	if sendTime := r.FormValue("send_time"); sendTime != "" {
		t, err := time.ParseInLocation(sendTimeLayout, sendTime, time.Local)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid date format, use 'YYYY-MM-DD HH:MM:SS'")
			return
		}
		scheduledAt = &t
	}

	file, _, err := r.FormFile("csv_file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "recipient file is required")
		return
	}
	defer file.Close()

	recipients, err := readRecipients(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("error processing recipient file: %v", err))
		return
	}
	if len(recipients) == 0 {
		s.respondError(w, http.StatusBadRequest, "recipient file contains no addresses")
		return
	}

	normalized, err := s.normalizer.Normalize(body)
	if err != nil {
		s.logger.Warn("failed to normalize body, sending as-is", "error", err)
		normalized = body
	}

	job := &models.SendJob{
		SenderEmail: senderEmail,
		Provider:    service,
		Subject:     subject,
		Body:        normalized,
		Recipients:  recipients,
		CC:          splitAddressList(r.FormValue("cc")),
		BCC:         splitAddressList(r.FormValue("bcc")),
		ScheduledAt: scheduledAt,
	}

	if scheduledAt != nil {
		id := s.scheduler.Schedule(*scheduledAt, job)
		s.respondJSON(w, http.StatusAccepted, map[string]string{
			"message": fmt.Sprintf("Email scheduled for %s", scheduledAt.Format(sendTimeLayout)),
			"job_id":  id,
		})
		return
	}

	result, err := s.engine.Dispatch(r.Context(), job)
	switch {
	case errors.Is(err, dispatch.ErrUnauthenticated):
		s.respondError(w, http.StatusForbidden, "user not authenticated or email disabled")
	case err != nil:
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("error sending emails: %v", err))
	default:
		s.notifier.BatchFinished(r.Context(), job, result)
		s.respondJSON(w, http.StatusOK, result)
	}
}

// readRecipients reads one address per line; when a line is comma delimited
// only the first field is used
func readRecipients(file io.Reader) ([]string, error) {
	var recipients []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		addr := strings.TrimSpace(strings.SplitN(line, ",", 2)[0])
		if addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return recipients, nil
}

// splitAddressList splits a comma-separated address list, dropping empties
func splitAddressList(raw string) []string {
	if raw == "" {
		return nil
	}
	var addrs []string
	for _, part := range strings.Split(raw, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}
