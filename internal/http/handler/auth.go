package handler

import (
	"context"

	"backend-loket/internal/config"
	"backend-loket/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

type AuthHandler struct {
	users  UserFinder
	tokens *config.TokenIssuer
	log    *log.Entry
}

func NewAuthHandler(users UserFinder, tokens *config.TokenIssuer, logger *log.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, log: logger.WithField("component", "http")}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email dan password harus diisi")
	}

	user, err := h.users.FindByEmail(c.UserContext(), req.Email)
	if errors.Is(err, models.ErrUserNotFound) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Email atau password salah",
		})
	}
	if err != nil {
		h.log.WithError(err).Error("login lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Database error",
		})
	}

	// Check if user is banned
	if user.IsBanned == "y" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "Akun Anda telah diblokir",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Email atau password salah",
		})
	}

	resp := models.ToUserResponse(user)
	token, err := h.tokens.GenerateToken(user.ID, user.Nama, user.Email, user.Role, resp.CounterID)
	if err != nil {
		h.log.WithError(err).Error("sign token failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to generate token",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
		"user":    resp,
		"message": "Login berhasil! Selamat datang kembali, " + user.Nama,
	})
}

// Logout - token stateless, client cukup membuang token
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logout berhasil",
	})
}
