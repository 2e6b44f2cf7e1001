package webhook

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	accountx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/account"
	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	dedupex "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/dedupe"
	enquiryx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/enquiry"
	orchestratorx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/orchestrator"
	metricsx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/metrics"
)

type Config struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" split_words:"true" default:":8080"`
	Debug      bool   `envconfig:"DEBUG" split_words:"true" default:"false"`
}

// Server is the HTTP surface: channel-provider webhooks in, staff actions for
// the enquiry round trip, and operational endpoints.
type Server struct {
	router       *gin.Engine
	orchestrator *orchestratorx.Orchestrator
	accounts     *accountx.Manager
	ledger       *enquiryx.Ledger
	dedupe       *dedupex.Cache
	listenAddr   string
}

func NewServer(
	cfg Config,
	orchestrator *orchestratorx.Orchestrator,
	accounts *accountx.Manager,
	ledger *enquiryx.Ledger,
	dedupe *dedupex.Cache,
) (*Server, error) {
	if orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if accounts == nil {
		return nil, errors.New("account manager is required")
	}
	if ledger == nil {
		return nil, errors.New("enquiry ledger is required")
	}
	if dedupe == nil {
		return nil, errors.New("dedupe cache is required")
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:       router,
		orchestrator: orchestrator,
		accounts:     accounts,
		ledger:       ledger,
		dedupe:       dedupe,
		listenAddr:   cfg.ListenAddr,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(metricsx.Handler()))

	s.router.POST("/webhooks/channel", s.handleChannelEvent)

	s.router.POST("/enquiries/:id/resolve", s.handleResolveEnquiry)
	s.router.POST("/enquiries/:id/close", s.handleCloseEnquiry)

	s.router.POST("/agents/:id/pairing-code", s.handleReissuePairingCode)
}

func (s *Server) Run() error {
	log.Info().Str("addr", s.listenAddr).Msg("webhook server listening")
	return s.router.Run(s.listenAddr)
}

// Router is exposed for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// channelEventEnvelope carries either a customer message or an account status
// change; the provider multiplexes both onto one webhook.
type channelEventEnvelope struct {
	Message *contractx.InboundMessageEvent `json:"message,omitempty"`
	Account *contractx.AccountStatusEvent  `json:"account,omitempty"`
}

// handleChannelEvent always answers 200 once the payload parses. The provider
// redelivers on non-2xx, and redelivering a turn we already dropped or
// completed only produces duplicate outbound messages.
func (s *Server) handleChannelEvent(c *gin.Context) {
	var envelope channelEventEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		metricsx.WebhookEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	switch {
	case envelope.Account != nil:
		s.processAccountEvent(c, *envelope.Account)
	case envelope.Message != nil:
		s.processMessageEvent(c, *envelope.Message)
	default:
		metricsx.WebhookEventsTotal.WithLabelValues("unknown", "empty").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

func (s *Server) processAccountEvent(c *gin.Context, ev contractx.AccountStatusEvent) {
	if err := s.accounts.HandleAccountEvent(c.Request.Context(), ev); err != nil {
		metricsx.WebhookEventsTotal.WithLabelValues("account", "error").Inc()
		log.Error().Err(err).
			Str("external_account_id", ev.ExternalAccountID).
			Str("event_kind", string(ev.EventKind)).
			Msg("account event failed")
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}
	metricsx.WebhookEventsTotal.WithLabelValues("account", "processed").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

func (s *Server) processMessageEvent(c *gin.Context, ev contractx.InboundMessageEvent) {
	if key := strings.TrimSpace(ev.MessageID); key != "" {
		if s.dedupe.CheckAndMark(ev.ExternalAccountID + ":" + key) {
			metricsx.WebhookEventsTotal.WithLabelValues("message", "duplicate").Inc()
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
	}

	out, err := s.orchestrator.HandleInbound(c.Request.Context(), ev)
	if err != nil {
		metricsx.WebhookEventsTotal.WithLabelValues("message", "error").Inc()
		log.Error().Err(err).
			Str("chat_id", ev.ChatID).
			Str("external_account_id", ev.ExternalAccountID).
			Msg("inbound turn failed")
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	if out.Dropped {
		metricsx.WebhookEventsTotal.WithLabelValues("message", "dropped").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "dropped", "reason": out.DropReason})
		return
	}
	metricsx.WebhookEventsTotal.WithLabelValues("message", "processed").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "processed", "thread_id": out.ThreadID})
}

type resolveEnquiryRequest struct {
	Response   string `json:"response" binding:"required"`
	ResolverID string `json:"resolver_id"`
}

func (s *Server) handleResolveEnquiry(c *gin.Context) {
	var req resolveEnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	en, err := s.ledger.Resolve(c.Request.Context(), c.Param("id"), req.Response, req.ResolverID)
	switch {
	case errors.Is(err, contractx.ErrEnquiryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "enquiry not found"})
	case errors.Is(err, contractx.ErrEnquiryAlreadyResolved):
		// A duplicate staff action is not a failure; report the settled state.
		status := string(contractx.EnquiryResolved)
		if settled, getErr := s.ledger.Get(c.Request.Context(), c.Param("id")); getErr == nil {
			status = string(settled.Status)
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "enquiry_id": c.Param("id")})
	case errors.Is(err, contractx.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		log.Error().Err(err).Str("enquiry_id", c.Param("id")).Msg("resolve enquiry failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": string(en.Status), "enquiry_id": en.ID})
	}
}

func (s *Server) handleCloseEnquiry(c *gin.Context) {
	err := s.ledger.Close(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, contractx.ErrEnquiryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "enquiry not found"})
	case errors.Is(err, contractx.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "only resolved enquiries can be closed"})
	case err != nil:
		log.Error().Err(err).Str("enquiry_id", c.Param("id")).Msg("close enquiry failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "close failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "closed"})
	}
}

func (s *Server) handleReissuePairingCode(c *gin.Context) {
	code, err := s.accounts.Reconnect(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, contractx.ErrAgentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
	case errors.Is(err, contractx.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "agent is already connected"})
	case err != nil:
		log.Error().Err(err).Str("agent_id", c.Param("id")).Msg("pairing code reissue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pairing code reissue failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"pairing_code": code})
	}
}
