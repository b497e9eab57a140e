package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/example/foodsched/internal/auth"
	"github.com/example/foodsched/internal/logging"
	"github.com/example/foodsched/internal/realtime"
)

var errForbidden = errors.New("forbidden")

// handleIssueKitchenToken gives an admin a token for one restaurant's
// order stream.
func (s *Server) handleIssueKitchenToken(w http.ResponseWriter, r *http.Request) {
	id, err := restaurantID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.Ordering.Restaurants.Get(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	token, exp, err := s.Tokens.Issue(id, "user:"+strconv.FormatInt(uid, 10), s.Clock.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":     token,
		"expiresAt": exp,
		"stream":    fmt.Sprintf("/restaurants/%d/orders/stream", id),
	})
}

func (s *Server) handleOrderStream(w http.ResponseWriter, r *http.Request) {
	id, err := restaurantID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	claims, err := s.Tokens.Validate(auth.ExtractToken(r, "token"), s.Clock.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if claims.RestaurantID != id {
		s.writeError(w, r, fmt.Errorf("%w: token is for restaurant %d", errForbidden, claims.RestaurantID))
		return
	}
	if err := s.Realtime.Serve(w, r, realtime.RestaurantTopic(id), claims.Subject); err != nil {
		logging.FromContext(r.Context(), s.log()).Warn("ws upgrade failed", slog.Int64("restaurant_id", id), slog.Any("error", err))
	}
}
