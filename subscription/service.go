package subscription

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/zllovesuki/subsync/auth"
	resp "github.com/zllovesuki/subsync/response"

	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// SignatureHeader carries the webhook signature
const SignatureHeader = "Stripe-Signature"

const maxBodyBytes = 1 << 20

var validate *validator.Validate = validator.New()

// Authenticator puts *auth.Claims into the request context
type Authenticator interface {
	Middleware() func(next http.Handler) http.Handler
}

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	Bootstrap      *Bootstrap
	Reconciler     *Reconciler
	Auth           Authenticator
	Logger         *zap.Logger
	AllowedOrigins []string // CORS origins for /manage, defaults to "*"
}

// Service is the subscription API router
type Service struct {
	ServiceOptions
}

// ManageBody is the optional JSON body of a manage request
type ManageBody struct {
	OriginURL string `json:"originUrl" validate:"omitempty,url"`
}

// ManageResponse is returned on a successful manage request
type ManageResponse struct {
	URL string `json:"url"`
}

// WebhookResponse is returned once a webhook delivery is acknowledged
type WebhookResponse struct {
	Received bool `json:"received"`
}

// NewService will create an instance of the subscription API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Bootstrap == nil {
		return nil, fmt.Errorf("nil Bootstrap is invalid")
	}
	if option.Reconciler == nil {
		return nil, fmt.Errorf("nil Reconciler is invalid")
	}
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if len(option.AllowedOrigins) == 0 {
		option.AllowedOrigins = []string{"*"}
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

func (s *Service) manage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ManageRequest
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		req.UserID = claims.UserID()
		req.Email = claims.Email
		req.Name = claims.Name
	}

	var body ManageBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&body); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().WithMessage("Invalid originUrl"))
		return
	}

	req.Origin = body.OriginURL
	if req.Origin == "" {
		req.Origin = r.Header.Get("Origin")
	}

	redirect, err := s.Bootstrap.Manage(ctx, req)
	if err != nil {
		s.Logger.Error("Unable to bootstrap subscription session",
			zap.String("UserID", req.UserID),
			zap.String("Kind", KindOf(err).String()),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.New(HTTPStatusForManage(err), publicMessage(err)))
		return
	}

	resp.WriteResponse(w, r, http.StatusOK, ManageResponse{
		URL: redirect.URL,
	})
}

func (s *Service) webhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		s.Logger.Warn("Webhook delivered without signature")
		resp.WriteError(w, r, resp.ErrBadRequest().
			WithMessage("Missing Stripe-Signature header").
			WithType(KindSignatureInvalid.String()))
		return
	}

	payload, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		resp.WriteError(w, r, resp.ErrRequestTooLarge())
		return
	}

	if _, err := s.Reconciler.Reconcile(r.Context(), payload, signature); err != nil {
		resp.WriteError(w, r, resp.New(HTTPStatusForWebhook(err), publicMessage(err)).
			WithType(KindOf(err).String()))
		return
	}

	resp.WriteResponse(w, r, http.StatusOK, WebhookResponse{
		Received: true,
	})
}

// publicMessage hides wrapped infrastructure errors from the caller
func publicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "An unexpected error has occured"
}

// Router returns the handler for /manage and /webhook
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/manage", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.AllowedOrigins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
			MaxAge:         300,
		}))
		r.With(s.Auth.Middleware()).Post("/", s.manage)
	})

	r.Post("/webhook", s.webhook)

	return r
}
