package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"github.com/mixelka/massmailer/internal/config"
	"github.com/mixelka/massmailer/internal/database"
	"github.com/mixelka/massmailer/internal/notify"
	"github.com/mixelka/massmailer/internal/parser"
	"github.com/mixelka/massmailer/pkg/models"
)

// Dispatcher runs one send loop over a recipient batch
type Dispatcher interface {
	Dispatch(ctx context.Context, job *models.SendJob) (*models.DispatchResult, error)
}

// JobScheduler registers deferred dispatches
type JobScheduler interface {
	Schedule(fireAt time.Time, job *models.SendJob) string
}

// Server is the HTTP surface: job submission, OAuth verification flows,
// template management and read-only statistics
type Server struct {
	cfg        *config.Config
	db         *database.DB
	engine     Dispatcher
	scheduler  JobScheduler
	notifier   *notify.Notifier
	normalizer *parser.BodyNormalizer
	logger     *slog.Logger

	googleOAuth  *oauth2.Config
	outlookOAuth *oauth2.Config
}

// Deps dependencies for creating a server
type Deps struct {
	Config     *config.Config
	DB         *database.DB
	Engine     Dispatcher
	Scheduler  JobScheduler
	Notifier   *notify.Notifier
	Normalizer *parser.BodyNormalizer
	Logger     *slog.Logger
}

// New creates a new server
func New(deps Deps) *Server {
	cfg := deps.Config
	return &Server{
		cfg:        cfg,
		db:         deps.DB,
		engine:     deps.Engine,
		scheduler:  deps.Scheduler,
		notifier:   deps.Notifier,
		normalizer: deps.Normalizer,
		logger:     deps.Logger.With("component", "server"),
		googleOAuth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       cfg.GoogleScopes,
			Endpoint:     google.Endpoint,
		},
		outlookOAuth: &oauth2.Config{
			ClientID:     cfg.OutlookClientID,
			ClientSecret: cfg.OutlookClientSecret,
			RedirectURL:  cfg.OutlookRedirectURL,
			Scopes:       cfg.OutlookScopes,
			Endpoint:     microsoft.AzureADEndpoint("common"),
		},
	}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Mass-send job submission
	r.Post("/send_mass_mail", s.handleSendMassMail)

	// Read-only dashboard endpoints
	r.Get("/dashboard_statistics", s.handleDashboardStatistics)
	r.Get("/oauth_emails", s.handleOAuthEmails)

	// OAuth verification flows
	r.Get("/verify_email", s.handleVerifyGmail)
	r.Get("/callback", s.handleGmailCallback)
	r.Get("/verify_outlook", s.handleVerifyOutlook)
	r.Get("/outlook_callback", s.handleOutlookCallback)

	// Template management
	r.Get("/get_templates", s.handleListTemplates)
	r.Post("/create_template", s.handleCreateTemplate)
	r.Put("/update_template/{id}", s.handleUpdateTemplate)
	r.Delete("/delete_template/{id}", s.handleDeleteTemplate)

	return r
}
