package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/auth"
	"github.com/spec-kit/campus-support/internal/domain"
	"github.com/spec-kit/campus-support/internal/repository"
)

// defaultDepartments are created on boot when missing. The classifier's
// category names route into them.
var defaultDepartments = []domain.Department{
	{Name: "Network Support", Description: "Wifi, VPN, and connectivity issues"},
	{Name: "Hardware Support", Description: "Laptops, printers, and lab equipment"},
	{Name: "Student Services", Description: "Enrollment, records, and account requests"},
	{Name: "General Support", Description: "Everything without a dedicated desk"},
}

// Seed ensures the default departments and the agent bot account exist.
// It is idempotent and safe to run on every startup.
func Seed(ctx context.Context, departments repository.DepartmentRepository, users repository.UserRepository, bcryptCost int, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, dept := range defaultDepartments {
		_, err := departments.GetByName(ctx, dept.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		created := dept
		if err := departments.Create(ctx, &created); err != nil {
			return err
		}
		logger.Info("seeded department", zap.String("name", created.Name))
	}

	_, err := users.GetByEmail(ctx, domain.AgentBotEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	// the bot never logs in interactively, so its password is a throwaway
	hash, err := auth.HashPassword(uuid.NewString(), bcryptCost)
	if err != nil {
		return err
	}
	bot := &domain.User{
		Name:         "Agent Bot",
		Email:        domain.AgentBotEmail,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	}
	if err := users.Create(ctx, bot); err != nil {
		return err
	}
	logger.Info("seeded agent bot", zap.String("user_id", bot.ID))
	return nil
}
