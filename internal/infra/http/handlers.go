package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/infra/logging"
)

type initiateRequest struct {
	UserID      string `json:"user_id"`
	PlanID      string `json:"plan_id,omitempty"`
	PhoneNumber string `json:"phone_number"`
	// Amount is only honored on plan-less pushes; the plan price is
	// authoritative otherwise.
	Amount           int64  `json:"amount,omitempty"`
	AccountReference string `json:"account_reference,omitempty"`
	Description      string `json:"description,omitempty"`
}

type initiateResponse struct {
	PaymentID         string `json:"payment_id"`
	SubscriptionID    string `json:"subscription_id,omitempty"`
	CheckoutRequestID string `json:"checkout_request_id"`
	MerchantRequestID string `json:"merchant_request_id"`
	Amount            int64  `json:"amount"`
	Status            string `json:"status"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.PlanID == "" && req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "plan_id or a positive amount is required")
		return
	}

	ctx := logging.WithUserID(r.Context(), req.UserID)
	payment, err := s.paymentUC.Initiate(ctx, req.UserID, req.PlanID, req.PhoneNumber, req.Amount, req.AccountReference, req.Description)
	if err != nil {
		s.writeInitiateError(w, err)
		return
	}

	resp := initiateResponse{
		PaymentID:         payment.ID,
		CheckoutRequestID: payment.CheckoutRequestID,
		MerchantRequestID: payment.MerchantRequestID,
		Amount:            payment.Amount,
		Status:            string(payment.Status),
	}
	if payment.SubscriptionID != nil {
		resp.SubscriptionID = *payment.SubscriptionID
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) writeInitiateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPhoneNumber), errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "plan not found")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many payment attempts, try again later")
	case errors.Is(err, domain.ErrUpstreamAuth), errors.Is(err, domain.ErrUpstreamPayment):
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// callbackEnvelope mirrors the provider's result notification body.
type callbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value,omitempty"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// handleCallback always answers 200; the body's ResultCode tells the
// provider whether to redeliver.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	var env callbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		s.log.Warn().Err(err).Msg("malformed callback body")
		writeJSON(w, http.StatusOK, callbackAck{ResultCode: 1, ResultDesc: "Rejected"})
		return
	}

	sc := env.Body.StkCallback
	cb := &model.STKCallback{
		CheckoutRequestID: sc.CheckoutRequestID,
		ResultCode:        sc.ResultCode,
		ResultDesc:        sc.ResultDesc,
	}
	for _, item := range sc.CallbackMetadata.Item {
		cb.Items = append(cb.Items, model.CallbackItem{Name: item.Name, Value: item.Value})
	}

	ctx := logging.WithCheckoutID(r.Context(), sc.CheckoutRequestID)
	if s.paymentUC.ProcessCallback(ctx, cb) {
		writeJSON(w, http.StatusOK, callbackAck{ResultCode: 0, ResultDesc: "Accepted"})
		return
	}
	writeJSON(w, http.StatusOK, callbackAck{ResultCode: 1, ResultDesc: "Rejected"})
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	payment, err := s.paymentUC.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

type planResponse struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Slug         string         `json:"slug"`
	Description  string         `json:"description,omitempty"`
	Price        int64          `json:"price"`
	BillingCycle string         `json:"billing_cycle"`
	Features     map[string]any `json:"features,omitempty"`
	IsPopular    bool           `json:"is_popular"`
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planUC.List(r.Context(), true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{
			ID:           p.ID,
			Name:         p.Name,
			Slug:         p.Slug,
			Description:  p.Description,
			Price:        p.Price,
			BillingCycle: string(p.BillingCycle),
			Features:     p.Features,
			IsPopular:    p.IsPopular,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
