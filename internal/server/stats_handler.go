package server

import "net/http"

// handleDashboardStatistics serves the ledger aggregates. Pure read.
func (s *Server) handleDashboardStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStatistics(r.Context())
	if err != nil {
		s.logger.Error("failed to load statistics", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

type mailboxInfo struct {
	Email          string  `json:"email"`
	Provider       string  `json:"provider"`
	Status         string  `json:"status"`
	DeliveryScore  int     `json:"delivery_score"`
	Deliverability float64 `json:"deliverability"`
}

// handleOAuthEmails lists every verified mailbox with its delivery score and
// deliverability percentage relative to the whole ledger
func (s *Server) handleOAuthEmails(w http.ResponseWriter, r *http.Request) {
	creds, err := s.db.ListCredentials(r.Context())
	if err != nil {
		s.logger.Error("failed to list credentials", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load mailboxes")
		return
	}

	stats, err := s.db.GetStatistics(r.Context())
	if err != nil {
		s.logger.Error("failed to load statistics", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}

	mailboxes := make([]mailboxInfo, 0, len(creds))
	for _, c := range creds {
		var deliverability float64
		if stats.SentCount > 0 {
			deliverability = float64(c.DeliveryScore) / float64(stats.SentCount) * 100
		}
		mailboxes = append(mailboxes, mailboxInfo{
			Email:          c.Email,
			Provider:       c.Provider,
			Status:         c.Status,
			DeliveryScore:  c.DeliveryScore,
			Deliverability: deliverability,
		})
	}
	s.respondJSON(w, http.StatusOK, mailboxes)
}
