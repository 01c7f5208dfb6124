package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/usecase"
)

// statsHandler serves the admin dashboard totals.
func statsHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		users, byStatus, err := statsUC.Totals(ctx)
		if err != nil {
			http.Error(w, "Failed to get totals", http.StatusInternalServerError)
			return
		}
		week, month, year, err := statsUC.Revenue(ctx)
		if err != nil {
			http.Error(w, "Failed to get revenue", http.StatusInternalServerError)
			return
		}

		response := struct {
			TotalUsers   int                               `json:"total_users"`
			SubsByStatus map[model.SubscriptionStatus]int  `json:"subscriptions_by_status"`
			Revenue      struct {
				Week  int64 `json:"week"`
				Month int64 `json:"month"`
				Year  int64 `json:"year"`
			} `json:"revenue_kes"`
		}{
			TotalUsers:   users,
			SubsByStatus: byStatus,
		}
		response.Revenue.Week = week
		response.Revenue.Month = month
		response.Revenue.Year = year

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

func pageParams(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// usersListHandler returns a paginated list of users.
func usersListHandler(userUC usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		offset, limit := pageParams(r)

		users, err := userUC.List(ctx, offset, limit)
		if err != nil {
			http.Error(w, "Failed to list users", http.StatusInternalServerError)
			return
		}
		total, err := userUC.Count(ctx)
		if err != nil {
			http.Error(w, "Failed to count users", http.StatusInternalServerError)
			return
		}

		response := struct {
			Data   []*model.User `json:"data"`
			Total  int           `json:"total"`
			Limit  int           `json:"limit"`
			Offset int           `json:"offset"`
		}{users, total, limit, offset}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

// userGetHandler returns one user together with their subscriptions.
func userGetHandler(userUC usecase.UserUseCase, subUC usecase.SubscriptionUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
		if id == "" {
			http.Error(w, "User ID is required", http.StatusBadRequest)
			return
		}

		user, err := userUC.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to get user", http.StatusInternalServerError)
			return
		}

		subscriptions, err := subUC.ListByUser(ctx, user.ID)
		if err != nil {
			http.Error(w, "Failed to get user subscriptions", http.StatusInternalServerError)
			return
		}

		response := struct {
			User          *model.User           `json:"user"`
			Subscriptions []*model.Subscription `json:"subscriptions"`
		}{user, subscriptions}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

type planCreateRequest struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Price        int64          `json:"price"`
	BillingCycle string         `json:"billing_cycle"`
	Features     map[string]any `json:"features"`
}

func plansCreateHandler(planUC usecase.PlanUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req planCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		plan, err := planUC.Create(ctx, req.Name, req.Description, req.Price, model.BillingCycle(req.BillingCycle), req.Features)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to create plan", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(plan)
	}
}

// plansListHandler lists every plan, including inactive ones.
func plansListHandler(planUC usecase.PlanUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := planUC.List(r.Context(), false)
		if err != nil {
			http.Error(w, "Failed to list plans", http.StatusInternalServerError)
			return
		}

		response := struct {
			Data []*model.Plan `json:"data"`
		}{plans}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

func planGetHandler(planUC usecase.PlanUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/plans/")
		plan, err := planUC.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to get plan", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(plan)
	}
}

func plansUpdateHandler(planUC usecase.PlanUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/plans/")

		plan, err := planUC.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to get plan", http.StatusInternalServerError)
			return
		}

		var req struct {
			Name         *string        `json:"name"`
			Description  *string        `json:"description"`
			Price        *int64         `json:"price"`
			BillingCycle *string        `json:"billing_cycle"`
			Features     map[string]any `json:"features"`
			IsActive     *bool          `json:"is_active"`
			IsPopular    *bool          `json:"is_popular"`
			DisplayOrder *int           `json:"display_order"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if req.Name != nil {
			plan.Name = *req.Name
		}
		if req.Description != nil {
			plan.Description = *req.Description
		}
		if req.Price != nil {
			plan.Price = *req.Price
		}
		if req.BillingCycle != nil {
			plan.BillingCycle = model.BillingCycle(*req.BillingCycle)
		}
		if req.Features != nil {
			plan.Features = req.Features
		}
		if req.IsActive != nil {
			plan.IsActive = *req.IsActive
		}
		if req.IsPopular != nil {
			plan.IsPopular = *req.IsPopular
		}
		if req.DisplayOrder != nil {
			plan.DisplayOrder = *req.DisplayOrder
		}

		if err := planUC.Update(ctx, plan); err != nil {
			http.Error(w, "Failed to update plan", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(plan)
	}
}

func plansDeleteHandler(planUC usecase.PlanUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/plans/")
		if err := planUC.Delete(r.Context(), id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to delete plan", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// paymentsListHandler lists one user's payments; user_id is required.
func paymentsListHandler(paymentUC usecase.PaymentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			http.Error(w, "user_id query parameter is required", http.StatusBadRequest)
			return
		}
		offset, limit := pageParams(r)

		payments, err := paymentUC.ListByUser(r.Context(), userID, offset, limit)
		if err != nil {
			http.Error(w, "Failed to list payments", http.StatusInternalServerError)
			return
		}

		response := struct {
			Data   []*model.PaymentRequest `json:"data"`
			Limit  int                     `json:"limit"`
			Offset int                     `json:"offset"`
		}{payments, limit, offset}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

func paymentGetHandler(paymentUC usecase.PaymentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/payments/")
		payment, err := paymentUC.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to get payment", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payment)
	}
}

// subscriptionActionHandler serves GET /{id} and POST /{id}/cancel|renew.
func subscriptionActionHandler(subUC usecase.SubscriptionUseCase, path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		parts := strings.SplitN(strings.Trim(path, "/"), "/", 2)
		id := parts[0]
		if id == "" {
			http.Error(w, "Subscription ID is required", http.StatusBadRequest)
			return
		}

		var (
			sub any
			err error
		)
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			sub, err = subUC.Get(ctx, id)
		case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
			sub, err = subUC.Cancel(ctx, id)
		case len(parts) == 2 && parts[1] == "renew" && r.Method == http.MethodPost:
			sub, err = subUC.Renew(ctx, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.NotFound(w, r)
			case errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "Operation failed", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sub)
	}
}
