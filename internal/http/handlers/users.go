package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type SignupRunner interface {
	Signup(ctx context.Context, req user.SignupRequest) (user.User, error)
}

type UserGetter interface {
	ByID(ctx context.Context, id string) (user.ReadModel, error)
}

type UsersHandler struct {
	signup SignupRunner
	query  UserGetter
}

func NewUsersHandler(signup SignupRunner, query UserGetter) *UsersHandler {
	return &UsersHandler{
		signup: signup,
		query:  query,
	}
}

type SignupResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h *UsersHandler) Signup(ctx *gin.Context) {
	var req user.SignupRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	u, err := h.signup.Signup(cctx, req)

	if err != nil {
		switch {
		case errors.Is(err, user.ErrWeakPassword):
			RespondBadRequest(ctx, err.Error(), nil)
		case errors.Is(err, user.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		case errors.Is(err, user.ErrProjectionFailed):
			// the write committed; the read model is behind until the
			// reconciler catches up. Not cached for replay (non-2xx), so a
			// keyed retry resolves to email_taken, which is accurate.
			RespondError(ctx, http.StatusInternalServerError, "projection_failed",
				"User was created but is not yet readable.", gin.H{"userId": u.ID})
		default:
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	ctx.JSON(http.StatusCreated, SignupResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	})
}

func (h *UsersHandler) GetUser(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	rm, err := h.query.ByID(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not fetch user")
		return
	}

	ctx.JSON(http.StatusOK, rm)
}
