package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pricetracker/logger"
	"pricetracker/middleware"
	"pricetracker/models"
	"pricetracker/pricing"
)

type AuthController struct {
	DB       *gorm.DB
	Secret   []byte
	TokenTTL time.Duration
	Clock    pricing.Clock
	Log      *logger.Log
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges admin credentials for a signed bearer token.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var creds Credentials
	if err := c.BodyParser(&creds); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request format"})
	}

	entry := ac.Log.WithComponent("auth").WithFields(logger.Fields{"username": creds.Username})

	var user models.User
	err := ac.DB.WithContext(c.UserContext()).Where("username = ?", creds.Username).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			entry.WithError(err).Error("failed to look up user")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not log in"})
		}
		entry.Warn("login for unknown user")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid username or password"})
	}

	if !user.CheckPassword(creds.Password) {
		entry.Warn("login with wrong password")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid username or password"})
	}

	now := ac.Clock()
	token, err := middleware.IssueToken(ac.Secret, user.Username, ac.TokenTTL, now)
	if err != nil {
		entry.WithError(err).Error("failed to sign token")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not generate token"})
	}
	if err := ac.DB.WithContext(c.UserContext()).Model(&user).Update("last_login_at", now).Error; err != nil {
		entry.WithError(err).Warn("failed to record login time")
	}
	return c.JSON(fiber.Map{"token": token, "user": user.Username})
}
