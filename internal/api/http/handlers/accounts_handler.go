package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AccountsHandler registers customers and staff.
type AccountsHandler struct {
	accounts *service.AccountService
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(accounts *service.AccountService) *AccountsHandler {
	return &AccountsHandler{accounts: accounts}
}

// CreateUser handles POST /api/users.
func (h *AccountsHandler) CreateUser(c *fiber.Ctx) error {
	input, err := accountInput(c)
	if err != nil {
		return err
	}
	user, err := h.accounts.CreateUser(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.User(user)})
}

// CreateAdmin handles POST /api/admins.
func (h *AccountsHandler) CreateAdmin(c *fiber.Ctx) error {
	input, err := accountInput(c)
	if err != nil {
		return err
	}
	admin, err := h.accounts.CreateAdmin(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.Admin(admin)})
}

func accountInput(c *fiber.Ctx) (service.AccountInput, error) {
	var req dto.CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return service.AccountInput{}, apperrors.NewInvalidArgument("invalid payload", nil)
	}
	return service.AccountInput{Username: req.Username, Email: req.Email, Password: req.Password}, nil
}
